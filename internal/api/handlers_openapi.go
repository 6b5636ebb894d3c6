package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"sync"

	"leadgate/internal/version"

	"gopkg.in/yaml.v3"
)

//go:embed openapi/openapi.yaml
var openAPISpec []byte

var (
	versionedSpecOnce sync.Once
	versionedSpec     []byte
)

// specDocument returns the embedded document with info.version set to the
// running build. The embedded bytes are served unchanged if rewriting fails.
func specDocument() []byte {
	versionedSpecOnce.Do(func() {
		versionedSpec = openAPISpec

		var doc yaml.Node
		if err := yaml.Unmarshal(openAPISpec, &doc); err != nil || len(doc.Content) == 0 {
			slog.Warn("OpenAPI document could not be parsed", "error", err)
			return
		}
		info := mappingValue(doc.Content[0], "info")
		if info == nil {
			return
		}
		if v := mappingValue(info, "version"); v != nil {
			v.Value = version.GetInfo().Version
		}

		out, err := yaml.Marshal(&doc)
		if err != nil {
			slog.Warn("OpenAPI document could not be rewritten", "error", err)
			return
		}
		versionedSpec = out
	})
	return versionedSpec
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// ServeOpenAPISpec serves the OpenAPI 3.0.3 document as YAML.
func (h *Handlers) ServeOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(specDocument())
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Leadgate API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/api/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      tryItOutEnabled: false
    });
  </script>
</body>
</html>`

// ServeSwaggerUI serves a Swagger UI page for the document. Try-it-out is off
// so the docs page cannot spend analysis quota by accident.
func (h *Handlers) ServeSwaggerUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(swaggerUIHTML))
}
