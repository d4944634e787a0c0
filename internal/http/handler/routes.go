package handler

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"mime/multipart"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"casedocs/internal/filetype"
	"casedocs/internal/model"
	"casedocs/internal/service"
)

const userIDHeader = "X-User-ID"

// multipartField is the form field clients put their files under. Several
// files per request are allowed.
const multipartField = "documents"

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers translate between the wire and service.DocumentService; business
// logic stays out of this package.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService, maxUploadSize int64, log *zap.Logger) {
	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Post("/cases/:case_id/documents", UploadDocuments(docSvc, maxUploadSize))
	app.Get("/cases/:case_id/documents", ListCaseDocuments(docSvc))
	app.Get("/cases/:case_id/documents/archive", ExportCaseDocuments(docSvc, log))
	app.Get("/documents/:id/preview", PreviewDocument(docSvc))
	app.Get("/documents/:id/download", DownloadDocument(docSvc))
	app.Delete("/documents/:id", DeleteDocument(docSvc))
}

// HealthCheck reports readiness by pinging the database.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a plain liveness probe with no dependency checks.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// UploadDocuments ingests the files of one multipart request into a case.
// Every file is validated before the first one is ingested, so a rejected
// batch leaves nothing behind.
func UploadDocuments(docSvc service.DocumentService, maxSize int64) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caseID := c.Params("case_id")

		userID := c.Get(userIDHeader)
		if userID == "" {
			return writeError(c, fiber.StatusBadRequest, "USER_REQUIRED", "missing "+userIDHeader+" header")
		}

		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "multipart form with a '"+multipartField+"' field is required")
		}
		files := form.File[multipartField]
		if len(files) == 0 {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "at least one file is required")
		}

		// Validate-all-then-ingest.
		for _, fh := range files {
			if _, err := filetype.Classify(contentType(fh), fh.Filename); err != nil {
				return writeError(c, fiber.StatusBadRequest, "UNSUPPORTED_TYPE",
					fmt.Sprintf("file type of %q is not allowed", fh.Filename))
			}
			if fh.Size > maxSize {
				return writeError(c, fiber.StatusBadRequest, "FILE_TOO_LARGE",
					fmt.Sprintf("%q exceeds the size limit", fh.Filename))
			}
		}

		created := make([]model.Document, 0, len(files))
		for _, fh := range files {
			doc, err := uploadOne(c.UserContext(), docSvc, caseID, userID, fh)
			if err != nil {
				return writeServiceError(c, err)
			}
			created = append(created, *doc)
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	}
}

func uploadOne(ctx context.Context, docSvc service.DocumentService, caseID, userID string, fh *multipart.FileHeader) (*model.Document, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open uploaded file: %w", err)
	}
	defer f.Close()

	return docSvc.Upload(ctx, service.UploadInput{
		CaseID:       caseID,
		UploadedBy:   userID,
		OriginalName: fh.Filename,
		MediaType:    contentType(fh),
		Size:         fh.Size,
		Reader:       f,
	})
}

func contentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ListCaseDocuments returns the metadata of every document in a case.
func ListCaseDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		docs, err := docSvc.ListByCase(c.UserContext(), c.Params("case_id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		if docs == nil {
			docs = []model.Document{}
		}
		return c.JSON(docs)
	}
}

// PreviewDocument streams a document inline under its stored media type.
func PreviewDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		st, err := docSvc.Stage(c.UserContext(), id, service.ModePreview)
		if err != nil {
			return writeServiceError(c, err)
		}
		return sendStaged(c, st, false)
	}
}

// DownloadDocument streams a document as an attachment under its original name.
func DownloadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		st, err := docSvc.Stage(c.UserContext(), id, service.ModeDownload)
		if err != nil {
			return writeServiceError(c, err)
		}
		return sendStaged(c, st, true)
	}
}

// sendStaged hands a staged file to the response. The workspace is released
// as soon as the file is open; the descriptor keeps the bytes readable until
// streaming finishes, and the stream closes it.
func sendStaged(c *fiber.Ctx, st *service.StagedDocument, attachment bool) error {
	f, err := os.Open(st.Path)
	if err != nil {
		st.Close()
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	st.Close()

	c.Set(fiber.HeaderContentType, st.MediaType)
	if attachment {
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", st.Name))
	} else {
		c.Set(fiber.HeaderContentDisposition, "inline")
	}
	return c.SendStream(f, int(st.Size))
}

// ExportCaseDocuments streams a zip of every document in a case. Enumeration
// is synchronous so an empty case turns into a 404 before the response
// status goes out; member bytes flow only while the body streams.
func ExportCaseDocuments(docSvc service.DocumentService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ar, err := docSvc.ExportCase(c.UserContext(), c.Params("case_id"))
		if err != nil {
			return writeServiceError(c, err)
		}

		c.Set(fiber.HeaderContentType, "application/zip")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", ar.Filename()))

		ctx := c.UserContext()
		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			if err := ar.Stream(ctx, w); err != nil {
				// Too late for a status change; the truncated stream is the signal.
				log.Error("case export aborted",
					zap.String("case_id", ar.CaseID),
					zap.Error(err),
				)
			}
		})
		return nil
	}
}

// DeleteDocument removes a document and its stored artifact.
func DeleteDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := docSvc.Delete(c.UserContext(), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
