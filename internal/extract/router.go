package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ianbrucey/war-room-sub000/internal/model"
)

var _ Extractor = (*Router)(nil)

// Router picks the extraction strategy per file type: OCR where it applies,
// the text-layer strategy otherwise. When OCR fails on a file type both
// strategies handle, the router falls back rather than failing the stage.
// Input rejections never fall through.
type Router struct {
	Primary  Extractor // normally the OCR client; may be nil when unconfigured
	Fallback Extractor // the text-layer strategy
}

func NewRouter(primary, fallback Extractor) *Router {
	return &Router{Primary: primary, Fallback: fallback}
}

func (r *Router) Supports(fileType model.FileType) bool {
	if r.Primary != nil && r.Primary.Supports(fileType) {
		return true
	}
	return r.Fallback != nil && r.Fallback.Supports(fileType)
}

func (r *Router) Extract(ctx context.Context, content []byte, fileType model.FileType) (*Result, error) {
	if !r.Supports(fileType) {
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrInputRejected, fileType)
	}

	if r.Primary != nil && r.Primary.Supports(fileType) {
		res, err := r.Primary.Extract(ctx, content, fileType)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, ErrInputRejected) {
			return nil, err
		}
		if r.Fallback == nil || !r.Fallback.Supports(fileType) {
			return nil, err
		}
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		logrus.Warnf("primary extraction failed for %s, falling back to text layer: %v", fileType, err)
	}

	return r.Fallback.Extract(ctx, content, fileType)
}
