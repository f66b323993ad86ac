package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DraftKind tags the variant stored in a session's draft data
type DraftKind string

const (
	DraftKindCategoryList DraftKind = "category_list"
	DraftKindProduct      DraftKind = "product"
	DraftKindEditTarget   DraftKind = "edit_target"
)

// ErrUnknownDraft is returned when stored draft data carries an unknown tag
var ErrUnknownDraft = errors.New("unknown draft kind")

// Draft is the step-scoped payload of a session. Exactly one of the
// variants below is stored at a time.
type Draft interface {
	Kind() DraftKind
}

// CategoryOption is one entry of a snapshotted category list
type CategoryOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CategoryListDraft snapshots the categories offered when a wizard starts,
// so a later rename cannot retarget the index the user types.
type CategoryListDraft struct {
	Categories []CategoryOption `json:"categories"`
}

func (CategoryListDraft) Kind() DraftKind { return DraftKindCategoryList }

// ProductDraft accumulates a product during the creation wizard
type ProductDraft struct {
	CategoryID   string           `json:"category_id"`
	CategoryName string           `json:"category_name"`
	Name         string           `json:"name,omitempty"`
	Description  string           `json:"description,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	ImageURL     string           `json:"image_url,omitempty"`
}

func (ProductDraft) Kind() DraftKind { return DraftKindProduct }

// Complete reports whether every required field is present
func (d ProductDraft) Complete() bool {
	return d.CategoryID != "" && d.Name != "" && d.Description != "" && d.Price != nil && d.Price.IsPositive()
}

// ProductOption is one entry of a snapshotted product list
type ProductOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EditTargetDraft tracks the product and field picked in the edit wizard
type EditTargetDraft struct {
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Products     []ProductOption `json:"products,omitempty"`
	EditTargetID string          `json:"edit_target_id,omitempty"`
	TargetName   string          `json:"target_name,omitempty"`
	Field        ProductField    `json:"field,omitempty"`
}

func (EditTargetDraft) Kind() DraftKind { return DraftKindEditTarget }

type draftEnvelope struct {
	Kind DraftKind       `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EncodeDraft serializes a draft into its tagged JSON form
func EncodeDraft(d Draft) (datatypes.JSON, error) {
	if d == nil {
		return nil, nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode %s draft: %w", d.Kind(), err)
	}
	raw, err := json.Marshal(draftEnvelope{Kind: d.Kind(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s draft: %w", d.Kind(), err)
	}
	return datatypes.JSON(raw), nil
}

// DecodeDraft restores a draft from its tagged JSON form. Empty input
// decodes to a nil draft.
func DecodeDraft(raw []byte) (Draft, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var env draftEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode draft envelope: %w", err)
	}

	var d Draft
	var err error
	switch env.Kind {
	case DraftKindCategoryList:
		var v CategoryListDraft
		err = json.Unmarshal(env.Data, &v)
		d = v
	case DraftKindProduct:
		var v ProductDraft
		err = json.Unmarshal(env.Data, &v)
		d = v
	case DraftKindEditTarget:
		var v EditTargetDraft
		err = json.Unmarshal(env.Data, &v)
		d = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDraft, env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s draft: %w", env.Kind, err)
	}
	return d, nil
}
