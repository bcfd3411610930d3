package model

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered participant. The ID is the identity provider's subject.
type User struct {
	ID        string `json:"id"         gorm:"primaryKey"`
	Username  string `json:"username"   gorm:"not null;uniqueIndex"`
	Email     string `json:"email"      gorm:"not null;default:''"`
	FirstName string `json:"first_name" gorm:"not null;default:''"`
	LastName  string `json:"last_name"  gorm:"not null;default:''"`
}

func (User) TableName() string { return "users" }

// Conversation groups two or more participants exchanging messages.
type Conversation struct {
	ID        uuid.UUID `json:"conversation_id" gorm:"primaryKey;type:uuid"`
	CreatedAt time.Time `json:"created_at"      gorm:"not null;index"`
	UpdatedAt time.Time `json:"updated_at"      gorm:"not null;index"`
}

func (Conversation) TableName() string { return "conversations" }

// ConversationParticipant links a user to a conversation.
type ConversationParticipant struct {
	ConversationID uuid.UUID     `json:"conversation_id" gorm:"primaryKey;type:uuid"`
	Conversation   *Conversation `json:"-"               gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
	UserID         string        `json:"user_id"         gorm:"primaryKey;index"`
	User           *User         `json:"-"               gorm:"foreignKey:UserID"`
	JoinedAt       time.Time     `json:"joined_at"       gorm:"not null"`
}

func (ConversationParticipant) TableName() string { return "conversation_participants" }

// Message is a single text message sent within a conversation.
type Message struct {
	ID             uuid.UUID     `json:"message_id"      gorm:"primaryKey;type:uuid"`
	ConversationID uuid.UUID     `json:"conversation_id" gorm:"not null;type:uuid;index:idx_messages_conversation_sent_at,priority:1"`
	Conversation   *Conversation `json:"-"               gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
	SenderID       string        `json:"sender_id"       gorm:"not null;index"`
	Sender         *User         `json:"-"               gorm:"foreignKey:SenderID"`
	MessageBody    string        `json:"message_body"    gorm:"not null"`
	SentAt         time.Time     `json:"sent_at"         gorm:"not null;index;index:idx_messages_conversation_sent_at,priority:2"`
	UpdatedAt      time.Time     `json:"updated_at"      gorm:"not null"`
	IsRead         bool          `json:"is_read"         gorm:"not null;default:false"`
}

func (Message) TableName() string { return "messages" }

// Now returns the current time in UTC truncated to the precision every
// supported database can round-trip.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
