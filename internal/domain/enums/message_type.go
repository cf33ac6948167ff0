package enums

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeVideo MessageType = "video"
	MessageTypeVoice MessageType = "voice"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeVoice:
		return true
	default:
		return false
	}
}

// HasMedia reports whether messages of this type carry a media URL.
func (t MessageType) HasMedia() bool {
	return t == MessageTypeImage || t == MessageTypeVideo || t == MessageTypeVoice
}
