package adminapi

import (
	"net/http"

	"github.com/relaygate/relaygate/internal/proxy"
)

// insertSpec is the JSON body for a pass-insertion request: which built-in
// pass kind to construct, and where to splice it.
type insertSpec struct {
	Name     string `json:"name"`
	Position string `json:"position"` // "before" or "after"
	Anchor   string `json:"anchor"`
	When     string `json:"when"` // optional CEL guard expression

	// Params for kind-specific built-ins, only one set populated.
	Block     *blockParams     `json:"block,omitempty"`
	SetHeader *setHeaderParams `json:"setHeader,omitempty"`
}

type blockParams struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

type setHeaderParams struct {
	Header string `json:"header"`
	Value  string `json:"value"`
}

// buildStage turns an insertSpec's populated params into a proxy.Stage.
// Admin-inserted passes are deliberately limited to this small, safe
// vocabulary rather than arbitrary code, since they arrive over HTTP from
// an operator rather than from a Go caller linking this package directly.
func (s *insertSpec) buildStage() (proxy.Stage, error) {
	switch {
	case s.Block != nil:
		status := s.Block.Status
		if status == 0 {
			status = http.StatusForbidden
		}
		body := s.Block.Body
		return func(ctx *proxy.Context) bool {
			if !ctx.Writer.IsHTTP() {
				ctx.Writer.Destroy()
				return true
			}
			ctx.Writer.HTTP.WriteHeader(status)
			if body != "" {
				_, _ = ctx.Writer.HTTP.Write([]byte(body))
			}
			return true
		}, nil
	case s.SetHeader != nil:
		header, value := s.SetHeader.Header, s.SetHeader.Value
		return func(ctx *proxy.Context) bool {
			if ctx.Writer.IsHTTP() {
				ctx.Writer.HTTP.Header().Set(header, value)
			}
			return false
		}, nil
	default:
		return nil, errUnknownPassKind
	}
}

func (h *Handler) handleInsertPass(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")

	var spec insertSpec
	if err := decodeJSON(r, &spec); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if spec.Name == "" || spec.Anchor == "" {
		writeError(w, http.StatusBadRequest, errMissingField)
		return
	}

	stage, err := spec.buildStage()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var guard *proxy.Predicate
	if spec.When != "" {
		guard, err = proxy.CompilePredicate(spec.When)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	pass := proxy.Pass{Name: spec.Name, Run: stage, Guard: guard}

	switch spec.Position {
	case "before":
		err = h.srv.Before(kind, spec.Anchor, pass)
	case "after":
		err = h.srv.After(kind, spec.Anchor, pass)
	default:
		err = errInvalidPosition
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	h.logger.Info("adminapi: inserted pass", "kind", kind, "name", spec.Name, "position", spec.Position, "anchor", spec.Anchor)
	w.WriteHeader(http.StatusCreated)
}
