// Package dto contains the wire shapes of the card catalog APIs and their
// conversion to model.Card.
package dto
