/*
Cardmon
Copyright (c) 2026 The Zaparoo Project Contributors.
SPDX-License-Identifier: GPL-3.0-or-later

This file is part of Cardmon.

Cardmon is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Cardmon is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Cardmon.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package validation checks API request bodies with go-playground/validator
// and the card's own naming rules.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ZaparooProject/cardmon/pkg/volume"
	"github.com/go-playground/validator/v10"
)

var (
	ErrMissingParams = errors.New("missing params")
	ErrInvalidParams = errors.New("invalid params")
)

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("fatpath", validatePath)
	_ = v.RegisterValidation("fatlabel", validateLabel)
	return &Validator{validate: v}
}

// DefaultValidator is shared by all handlers.
var DefaultValidator = NewValidator()

// Validate returns an *Error listing every failed field.
func (v *Validator) Validate(params any) error {
	if err := v.validate.Struct(params); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return NewError(fieldErrs)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// DecodeAndValidate unmarshals a JSON body into dest and validates it.
func DecodeAndValidate[T any](body []byte, dest *T) error {
	if len(body) == 0 {
		return ErrMissingParams
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return DefaultValidator.Validate(dest)
}

// validatePath accepts a relative or absolute path whose every segment is a
// valid name on the volume.
func validatePath(fl validator.FieldLevel) bool {
	p := strings.Trim(fl.Field().String(), "/")
	if p == "" {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if !volume.ValidName(seg) {
			return false
		}
	}
	return true
}

func validateLabel(fl validator.FieldLevel) bool {
	_, err := volume.NormalizeLabel(fl.Field().String())
	return err == nil
}
