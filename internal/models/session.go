package models

import (
	"time"

	"gorm.io/datatypes"
)

// Step is a guided flow stage
type Step string

const (
	StepAwaitingCategory    Step = "awaiting_category"
	StepAwaitingName        Step = "awaiting_name"
	StepAwaitingDescription Step = "awaiting_description"
	StepAwaitingPrice       Step = "awaiting_price"
	StepAwaitingImage       Step = "awaiting_image"

	StepEditAwaitingCategory    Step = "edit_awaiting_category"
	StepEditAwaitingProduct     Step = "edit_awaiting_product"
	StepEditAwaitingField       Step = "edit_awaiting_field"
	StepEditAwaitingName        Step = "edit_awaiting_name"
	StepEditAwaitingDescription Step = "edit_awaiting_description"
	StepEditAwaitingPrice       Step = "edit_awaiting_price"
	StepEditAwaitingImage       Step = "edit_awaiting_image"
)

// ExpectsImage reports whether an inbound image attachment answers the step
func (s Step) ExpectsImage() bool {
	return s == StepAwaitingImage || s == StepEditAwaitingImage
}

// IsEdit reports whether the step belongs to the edit wizard
func (s Step) IsEdit() bool {
	switch s {
	case StepEditAwaitingCategory, StepEditAwaitingProduct, StepEditAwaitingField,
		StepEditAwaitingName, StepEditAwaitingDescription, StepEditAwaitingPrice,
		StepEditAwaitingImage:
		return true
	}
	return false
}

// DraftKind returns which draft variant the step works on
func (s Step) DraftKind() DraftKind {
	switch s {
	case StepAwaitingCategory, StepEditAwaitingCategory:
		return DraftKindCategoryList
	case StepAwaitingName, StepAwaitingDescription, StepAwaitingPrice, StepAwaitingImage:
		return DraftKindProduct
	case StepEditAwaitingProduct, StepEditAwaitingField, StepEditAwaitingName,
		StepEditAwaitingDescription, StepEditAwaitingPrice, StepEditAwaitingImage:
		return DraftKindEditTarget
	}
	return ""
}

// ConversationSession is the persisted wizard progress of one phone
type ConversationSession struct {
	Phone      string         `json:"phone" gorm:"primaryKey;size:32"`
	Step       Step           `json:"step" gorm:"size:48;not null"`
	CategoryID *string        `json:"category_id" gorm:"size:36"`
	DraftData  datatypes.JSON `json:"draft_data"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// TableName pins the table name
func (ConversationSession) TableName() string { return "conversation_sessions" }
