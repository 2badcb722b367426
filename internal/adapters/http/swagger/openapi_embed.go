package swagger

import _ "embed"

// OpenAPI holds the embedded OpenAPI YAML document.
//
//go:embed openapi.yaml
var OpenAPI []byte
