package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/JonMunkholm/seconvert/internal/core"
	"github.com/JonMunkholm/seconvert/internal/web/middleware"
)

// startConversion assigns the request a conversion id, echoes it in the
// X-Conversion-ID response header and bounds the conversion by the
// configured timeout.
func (s *Server) startConversion(w http.ResponseWriter, r *http.Request) (context.Context, context.CancelFunc) {
	id := uuid.NewString()
	w.Header().Set(middleware.ConversionIDHeader, id)

	ctx := core.ContextWithConversionID(r.Context(), id)
	return context.WithTimeout(ctx, s.cfg.Convert.Timeout)
}

// requestBody returns the request body capped at the configured maximum
// size. Reads fail once ctx is done, which stops a conversion that has
// outlived its request.
func (s *Server) requestBody(ctx context.Context, w http.ResponseWriter, r *http.Request) io.Reader {
	return &bodyReader{
		ctx:   ctx,
		r:     http.MaxBytesReader(w, r.Body, s.cfg.Convert.MaxFileSize),
		limit: s.cfg.Convert.MaxFileSize,
	}
}

type bodyReader struct {
	ctx   context.Context
	r     io.Reader
	limit int64
}

func (br *bodyReader) Read(p []byte) (int, error) {
	if err := br.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := br.r.Read(p)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		err = fmt.Errorf("file too large: the limit is %d bytes: %w", br.limit, err)
	}
	return n, err
}
