// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package product is the closed registry of SESAME product models.
package product

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

var (
	// ErrNotSupported is returned for unknown model names or product types
	ErrNotSupported = errors.New("product model not supported")
	// ErrNoDevice is returned for models which have no device implementation
	ErrNoDevice = errors.New("product model has no device implementation")
)

// Kind is the device implementation a model is served by
type Kind int

// all device kinds
const (
	KindNone Kind = iota
	KindSesame2
	KindBot
)

func (k Kind) String() string {
	switch k {
	case KindSesame2:
		return "CHSesame2"
	case KindBot:
		return "CHSesameBot"
	default:
		return "none"
	}
}

// Model is a SESAME product model
type Model struct {
	id          string
	locker      bool
	productType int
	kind        Kind
}

// all known models
var (
	WM2        = Model{id: "wm_2", locker: false, productType: 1, kind: KindNone}
	SS2        = Model{id: "sesame_2", locker: true, productType: 0, kind: KindSesame2}
	SS4        = Model{id: "sesame_4", locker: true, productType: 4, kind: KindSesame2}
	SesameBot1 = Model{id: "ssmbot_1", locker: true, productType: 2, kind: KindBot}
)

var models = []Model{WM2, SS2, SS4, SesameBot1}

// ByModel returns the model for its model name, e.g. "sesame_2"
func ByModel(id string) (Model, error) {
	for _, m := range models {
		if m.id == id {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("%w: %q", ErrNotSupported, id)
}

// ByType returns the model for its numeric product type
func ByType(productType int) (Model, error) {
	for _, m := range models {
		if m.productType == productType {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("%w: type %d", ErrNotSupported, productType)
}

// ID returns the model name
func (m Model) ID() string { return m.id }

// IsLocker returns true for models which lock something
func (m Model) IsLocker() bool { return m.locker }

// ProductType returns the numeric product type
func (m Model) ProductType() int { return m.productType }

// Kind returns the device implementation serving m
func (m Model) Kind() (Kind, error) {
	if m.kind == KindNone {
		return KindNone, fmt.Errorf("%w: %s", ErrNoDevice, m.id)
	}
	return m.kind, nil
}

func (m Model) String() string {
	if m.id == "" {
		return "unknown"
	}
	return m.id
}

// MarshalJSON is a custom JSON marshaller
func (m Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.id)
}

// UnmarshalJSON is a custom JSON unmarshaller
func (m *Model) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	model, err := ByModel(id)
	if err != nil {
		return err
	}
	*m = model
	return nil
}

// UnmarshalText allows models in YAML and environment configuration
func (m *Model) UnmarshalText(text []byte) error {
	model, err := ByModel(string(text))
	if err != nil {
		return err
	}
	*m = model
	return nil
}
