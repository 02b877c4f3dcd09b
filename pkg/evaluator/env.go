package evaluator

import "maps"

// Frame is one environment mapping. Frames are not chained: lookups only
// ever consult the top frame of a Stack.
type Frame map[string]Value

// Clone returns a shallow copy of the frame.
func (f Frame) Clone() Frame {
	out := make(Frame, len(f))
	maps.Copy(out, f)
	return out
}

// Merge returns a new frame holding the bindings of every frame in order;
// later frames win.
func Merge(frames ...Frame) Frame {
	size := 0
	for _, f := range frames {
		size += len(f)
	}
	out := make(Frame, size)
	for _, f := range frames {
		maps.Copy(out, f)
	}
	return out
}

// Stack is the environment frame stack threaded through evaluation. The
// bottom frame is the session's global frame.
type Stack struct {
	frames []Frame
}

// NewStack creates a stack whose base frame is global, or an empty frame
// when global is nil.
func NewStack(global Frame) *Stack {
	if global == nil {
		global = Frame{}
	}
	return &Stack{frames: []Frame{global}}
}

// Top returns the active frame.
func (s *Stack) Top() Frame {
	return s.frames[len(s.frames)-1]
}

// Depth returns the number of frames, including the base frame.
func (s *Stack) Depth() int {
	return len(s.frames)
}

// Get looks a name up in the top frame only.
func (s *Stack) Get(name string) (Value, bool) {
	v, ok := s.Top()[name]
	return v, ok
}

// Set binds a name in the top frame.
func (s *Stack) Set(name string, v Value) {
	s.Top()[name] = v
}

// Push makes f the top frame. The returned release func pops it; callers
// defer it so the pop runs on every exit path. Calling release more than
// once has no further effect.
func (s *Stack) Push(f Frame) (release func()) {
	s.frames = append(s.frames, f)
	depth := len(s.frames)
	released := false
	return func() {
		if released {
			return
		}
		released = true
		s.frames[depth-1] = nil
		s.frames = s.frames[:depth-1]
	}
}
