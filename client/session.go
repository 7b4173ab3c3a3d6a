package client

// Phase is the handshake state.
type Phase int

const (
	Uninitialized Phase = iota
	Initializing
	Ready
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	}
	return "unknown"
}

// Unassigned is the player id before any player_id line.
const Unassigned = -1

// Session tracks the handshake and the player id the server assigned.
// INIT BEGIN may arrive again at any point and restarts the handshake.
type Session struct {
	phase        Phase
	playerID     int
	usernameSent bool
	handshakes   int
}

func NewSession() *Session {
	return &Session{playerID: Unassigned}
}

func (s *Session) Phase() Phase { return s.phase }

func (s *Session) PlayerID() int { return s.playerID }

func (s *Session) Assigned() bool { return s.playerID != Unassigned }

func (s *Session) Handshakes() int { return s.handshakes }

func (s *Session) UsernameSent() bool { return s.usernameSent }

// BeginInit moves to Initializing from any phase. It reports whether a
// handshake was already in progress.
func (s *Session) BeginInit() (restarted bool) {
	restarted = s.phase == Initializing
	s.phase = Initializing
	return restarted
}

// EndInit completes a handshake and reports whether the username is owed.
// Outside a handshake the username is owed only if it was never sent.
func (s *Session) EndInit() (sendUsername bool) {
	switch {
	case s.phase == Initializing:
		sendUsername = true
	case !s.usernameSent:
		sendUsername = true
	}
	s.phase = Ready
	if sendUsername {
		s.usernameSent = true
		s.handshakes++
	}
	return sendUsername
}

// SetPlayerID stores id unconditionally and returns the previous value.
func (s *Session) SetPlayerID(id int) (prev int) {
	prev, s.playerID = s.playerID, id
	return prev
}
