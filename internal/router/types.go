package router

// Message is the payload carried through the broker and fanned out to
// sessions. The room id travels on the message so every backend can route
// it, and so a message arriving from another process instance is
// indistinguishable from a local one.
type Message struct {
	Type      string `json:"type"`
	RoomID    string `json:"roomId"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

const TypeMessage = "message"
