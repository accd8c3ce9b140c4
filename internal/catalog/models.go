// Package catalog holds the actor catalog: providers, transporters, receivers
// and regulators referenced by submissions. The kiosk only reads it; catalog
// administration happens elsewhere.
package catalog

import (
	id "garita/pkg/domain"
)

// ActorKind classifies an actor's role at the checkpoint.
type ActorKind string

const (
	KindProvider    ActorKind = "provider"
	KindTransporter ActorKind = "transporter"
	KindReceiver    ActorKind = "receiver"
	KindRegulator   ActorKind = "regulator"
)

func (k ActorKind) IsValid() bool {
	switch k {
	case KindProvider, KindTransporter, KindReceiver, KindRegulator:
		return true
	}
	return false
}

// Actor is a referenced entity; submissions and answers point at it but never
// own it.
type Actor struct {
	ID         id.ActorID `json:"id"`
	Kind       ActorKind  `json:"kind"`
	Name       string     `json:"name"`
	DocumentID string     `json:"document_id,omitempty"`
	Active     bool       `json:"active"`
}
