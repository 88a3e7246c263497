package http

import (
	"context"
	"log/slog"
	"os"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

// DefaultDocsPath is where the OpenAPI document lives relative to the
// working directory of the api binary.
const DefaultDocsPath = "api/openapi.yaml"

const swaggerPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>geobubbles API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body style="margin:0">
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({url: '/docs/openapi.json', dom_id: '#swagger-ui', deepLinking: true});
  </script>
</body>
</html>`

// apiDoc is the loaded OpenAPI document in both wire forms.
type apiDoc struct {
	yaml []byte
	json []byte
}

// loadAPIDoc reads and validates the document at path.
func loadAPIDoc(ctx context.Context, path string) (*apiDoc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(ctx); err != nil {
		return nil, err
	}
	js, err := spec.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return &apiDoc{yaml: raw, json: js}, nil
}

// SetupDocs serves Swagger UI at /docs and the OpenAPI document at
// /docs/openapi.yaml and /docs/openapi.json. A missing or invalid document
// is logged once and the document routes answer 404.
func SetupDocs(app *fiber.App, path string) {
	if path == "" {
		path = DefaultDocsPath
	}
	doc, err := loadAPIDoc(context.Background(), path)
	if err != nil {
		slog.Warn("openapi document unavailable", "path", path, "error", err)
	}

	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(swaggerPage)
	})
	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		if doc == nil {
			return errNotFound(c, "openapi document not found")
		}
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(doc.yaml)
	})
	app.Get("/docs/openapi.json", func(c *fiber.Ctx) error {
		if doc == nil {
			return errNotFound(c, "openapi document not found")
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(doc.json)
	})
}
