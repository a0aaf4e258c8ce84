package canvasstore

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tessera/internal/apperr"
	"github.com/starford/tessera/internal/models"
)

const (
	maxNameLen  = 200
	maxTitleLen = 500
	maxLabelLen = 200
)

func cardTypeRule() validation.Rule {
	in := make([]any, len(models.CardTypes))
	for i, t := range models.CardTypes {
		in[i] = t
	}
	return validation.In(in...).Error("unknown card type")
}

func connectionTypeRule() validation.Rule {
	in := make([]any, len(models.ConnectionTypes))
	for i, t := range models.ConnectionTypes {
		in[i] = t
	}
	return validation.In(in...).Error("unknown connection type")
}

func colorRule() validation.Rule {
	in := make([]any, len(models.Palette))
	for i, c := range models.Palette {
		in[i] = c
	}
	return validation.In(in...).Error("colour not in palette")
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("canvasstore: %v: %w", err, apperr.ErrInvalidInput)
}

func validateCanvasMeta(name, description string) error {
	return invalid(validation.Errors{
		"name":        validation.Validate(name, validation.Required, validation.Length(1, maxNameLen)),
		"description": validation.Validate(description, validation.Length(0, 2000)),
	}.Filter())
}

func validateCanvasPatch(p models.CanvasPatch) error {
	return invalid(validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.Length(1, maxNameLen)),
		validation.Field(&p.Description, validation.Length(0, 2000)),
	))
}

func validateNewCard(in models.NewCard) error {
	return invalid(validation.ValidateStruct(&in,
		validation.Field(&in.Type, cardTypeRule()),
		validation.Field(&in.Title, validation.Length(0, maxTitleLen)),
		validation.Field(&in.Color, colorRule()),
	))
}

func validateCardPatch(p models.CardPatch) error {
	return invalid(validation.ValidateStruct(&p,
		validation.Field(&p.Type, cardTypeRule()),
		validation.Field(&p.Title, validation.Length(0, maxTitleLen)),
		validation.Field(&p.Color, colorRule()),
	))
}

func validateNewConnection(in models.NewConnection) error {
	return invalid(validation.ValidateStruct(&in,
		validation.Field(&in.FromID, validation.Required),
		validation.Field(&in.ToID, validation.Required),
		validation.Field(&in.Type, connectionTypeRule()),
		validation.Field(&in.Label, validation.Length(0, maxLabelLen)),
	))
}

func validateConnectionPatch(p models.ConnectionPatch) error {
	return invalid(validation.ValidateStruct(&p,
		validation.Field(&p.Type, connectionTypeRule()),
		validation.Field(&p.Label, validation.Length(0, maxLabelLen)),
	))
}
