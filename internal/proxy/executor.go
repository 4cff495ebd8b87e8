package proxy

import "net/http"

// Run executes one pipeline invocation over list. base is the server's
// configured options; override is the per-call options (may be nil).
// head is any already-buffered bytes from an upgrade request line.
func Run(list *PassList, req *http.Request, w Writer, head []byte, base, override *Options, sink EventSink, onError ErrorCallback) {
	effective := MergeOptions(base, override)

	if target, err := effective.Target.Resolve(); err != nil {
		emitExecutorError(sink, onError, KindMissingTarget, err)
		return
	} else if target != nil {
		effective.Target = TargetFromValue(target)
	}
	if fwd, err := effective.Forward.Resolve(); err != nil {
		emitExecutorError(sink, onError, KindMissingTarget, err)
		return
	} else if fwd != nil {
		effective.Forward = TargetFromValue(fwd)
	}

	if effective.Target.IsZero() && effective.Forward.IsZero() {
		emitExecutorError(sink, onError, KindMissingTarget, errMissingTarget)
		return
	}

	ctx := NewContext(req, w, effective, sink, onError)
	ctx.Head = head

	for _, pass := range list.Snapshot() {
		if pass.Guard != nil && !pass.Guard.Eval(req) {
			continue
		}
		if pass.Run(ctx) {
			return
		}
	}
}

func emitExecutorError(sink EventSink, onError ErrorCallback, kind ErrorKind, err error) {
	if onError != nil {
		onError(kind, err)
	}
	if sink != nil {
		sink.Emit(Event{Kind: EventError, Err: NewError(kind, err)})
	}
}
