package httputil

import (
	"bytes"
	"net/http"

	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/errors"
	"github.com/wareflow/wareflow-backend/pkg/logger"
)

// bufferedWriter holds the response until the transaction outcome is known.
type bufferedWriter struct {
	header     http.Header
	body       bytes.Buffer
	statusCode int
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: make(http.Header)}
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.statusCode == 0 {
		b.statusCode = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedWriter) WriteHeader(code int) {
	if b.statusCode == 0 {
		b.statusCode = code
	}
}

func (b *bufferedWriter) flush(w http.ResponseWriter) {
	for k, v := range b.header {
		w.Header()[k] = v
	}
	status := b.statusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(b.body.Bytes())
}

// Transactional opens one transaction per request and stores it on the
// request context. The transaction commits when the handler answers with a
// status below 400 and rolls back otherwise. A failed commit replaces the
// buffered response with a 500. Hooks registered with database.OnCommit run
// after the commit and before the response is flushed.
func Transactional(db *database.DB, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tx, err := db.BeginTxx(r.Context(), nil)
			if err != nil {
				log.Error().Err(err).Msg("failed to begin transaction")
				Error(w, errors.Internal("failed to begin transaction"))
				return
			}

			ctx, hooks := database.WithTx(r.Context(), tx)
			buf := newBufferedWriter()

			committed := false
			defer func() {
				if committed {
					return
				}
				hooks.Discard()
				if rbErr := tx.Rollback(); rbErr != nil {
					log.Debug().Err(rbErr).Msg("rollback after failed request")
				}
			}()

			next.ServeHTTP(buf, r.WithContext(ctx))

			if buf.statusCode >= http.StatusBadRequest {
				buf.flush(w)
				return
			}

			if err := tx.Commit(); err != nil {
				committed = true
				log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to commit transaction")
				Error(w, database.Translate(err))
				return
			}
			committed = true

			hooks.Run()
			buf.flush(w)
		})
	}
}
