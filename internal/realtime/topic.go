package realtime

import "fmt"

// TopicKind discriminates topic namespaces. A typed topic key avoids the
// string-concatenation collisions a "session:{id}" room name invites once
// more topic kinds exist.
type TopicKind string

const (
	TopicKindSession TopicKind = "session"
)

// Topic identifies one broadcast room
type Topic struct {
	Kind TopicKind
	ID   uint
}

// SessionTopic is the room for one judging session
func SessionTopic(sessionID uint) Topic {
	return Topic{Kind: TopicKindSession, ID: sessionID}
}

func (t Topic) String() string {
	return fmt.Sprintf("%s/%d", t.Kind, t.ID)
}
