package models

// Role identifies the part of a compression request a message carries.
type Role string

// The closed set of message roles. Values are the wire names the compression
// service expects.
const (
	RoleInstruction Role = "system"
	RoleUser        Role = "user"
	RoleContext     Role = "context"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleInstruction, RoleUser, RoleContext:
		return true
	}
	return false
}

// Message is a single tagged part of a compression request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompressionMessages builds the request for one question: instruction,
// question, then the shared document context.
func CompressionMessages(instruction, question, context string) []Message {
	return []Message{
		{Role: RoleInstruction, Content: instruction},
		{Role: RoleUser, Content: question},
		{Role: RoleContext, Content: context},
	}
}

// Content returns the content of the first message with the given role.
func Content(msgs []Message, role Role) string {
	for _, m := range msgs {
		if m.Role == role {
			return m.Content
		}
	}
	return ""
}
