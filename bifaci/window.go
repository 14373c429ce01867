package bifaci

// Window is the embedding-side view of a browsing context. Implementations
// must be comparable (pointer types); windows are identified by equality.
type Window interface {
	// PostMessage delivers data to this window, restricted to targetOrigin.
	PostMessage(data []byte, targetOrigin string) error
	// Parent returns the parent window, or nil when there is none.
	Parent() Window
	// Top returns the top-most window, or nil when it is not reachable.
	Top() Window
	// AddMessageListener subscribes to messages posted to this window.
	// The returned function removes the subscription.
	AddMessageListener(fn func(MessageEvent)) (remove func())
}

// MessageEvent is one inbound message posted to a window.
type MessageEvent struct {
	Origin string
	Source Window
	Data   []byte
}

// OriginValidator decides whether an inbound origin is trusted.
type OriginValidator func(origin string) bool

// IsTopWindow reports whether w is its own top window.
func IsTopWindow(w Window) bool {
	if w == nil {
		return false
	}
	top := w.Top()
	return top != nil && top == w
}

// hostWindow picks the window the page talks to: its parent when embedded,
// otherwise the top window when that is a different context.
func hostWindow(w Window) Window {
	if w == nil {
		return nil
	}
	if p := w.Parent(); p != nil && p != w {
		return p
	}
	if t := w.Top(); t != nil && t != w {
		return t
	}
	return nil
}
