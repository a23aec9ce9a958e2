/*
 * Copyright 2025 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package validation validates values and structs received from clients.
package validation

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

const (
	// unreserved characters of RFC 3986, which keep keys URL-safe.
	sessionKeyRegexString  = `^[a-zA-Z0-9\-._~]+$`
	channelNameRegexString = `^[a-z][a-z0-9_-]*$`
)

var (
	sessionKeyRegex  = regexp.MustCompile(sessionKeyRegexString)
	channelNameRegex = regexp.MustCompile(channelNameRegexString)
)

var (
	defaultValidator = validator.New()
	defaultEn        = en.New()
	uni              = ut.New(defaultEn, defaultEn)
	trans, _         = uni.GetTranslator(defaultEn.Locale())
)

// FieldLevel is the field level interface.
type FieldLevel = validator.FieldLevel

// Violation is the error returned by the validation.
type Violation struct {
	Tag         string
	Field       string
	Err         error
	Description string
}

// Error returns the translated description of the violation.
func (e Violation) Error() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Err.Error()
}

// StructError is the error returned by the validation of struct.
type StructError struct {
	Violations []Violation
}

// Error returns the error message.
func (s StructError) Error() string {
	sb := strings.Builder{}
	for _, v := range s.Violations {
		sb.WriteString(v.Error())
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

// RegisterValidation registers a custom validation with the given tag.
func RegisterValidation(tag string, fn validator.Func) error {
	if err := defaultValidator.RegisterValidation(tag, fn); err != nil {
		return fmt.Errorf("register validation: %w", err)
	}
	return nil
}

// RegisterTranslation registers the message of the given tag.
func RegisterTranslation(tag, msg string) error {
	if err := defaultValidator.RegisterTranslation(
		tag,
		trans,
		func(ut ut.Translator) error {
			if err := ut.Add(tag, msg, true); err != nil {
				return fmt.Errorf("register translation: %w", err)
			}
			return nil
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field())
			return t
		},
	); err != nil {
		return fmt.Errorf("register translation: %w", err)
	}
	return nil
}

// ValidateValue validates the value with the tag.
func ValidateValue(v interface{}, tag string) error {
	if err := defaultValidator.Var(v, tag); err != nil {
		for _, e := range err.(validator.ValidationErrors) {
			return Violation{
				Tag:         e.Tag(),
				Err:         e,
				Description: e.Translate(trans),
			}
		}
	}
	return nil
}

// ValidateStruct validates the struct by its `validate` tags.
func ValidateStruct(s interface{}) error {
	if err := defaultValidator.Struct(s); err != nil {
		structError := &StructError{}
		for _, e := range err.(validator.ValidationErrors) {
			structError.Violations = append(structError.Violations, Violation{
				Tag:         e.Tag(),
				Field:       e.Namespace(),
				Err:         e,
				Description: e.Translate(trans),
			})
		}
		return structError
	}

	return nil
}

func mustRegister(tag, msg string, fn validator.Func) {
	if err := RegisterValidation(tag, fn); err != nil {
		fmt.Fprintf(os.Stderr, "validation %s: %v\n", tag, err)
		os.Exit(1)
	}
	if err := RegisterTranslation(tag, msg); err != nil {
		fmt.Fprintf(os.Stderr, "validation %s: %v\n", tag, err)
		os.Exit(1)
	}
}

func init() {
	if err := entranslations.RegisterDefaultTranslations(defaultValidator, trans); err != nil {
		fmt.Fprintf(os.Stderr, "validation register default translations: %v\n", err)
		os.Exit(1)
	}

	mustRegister(
		"session_key",
		"{0} must only contain letters, numbers, hyphen, period, underscore, and tilde",
		func(level validator.FieldLevel) bool {
			return sessionKeyRegex.MatchString(level.Field().String())
		},
	)

	mustRegister(
		"channel_name",
		"{0} must start with a lowercase letter and only contain lowercase letters, numbers, hyphen, and underscore",
		func(level validator.FieldLevel) bool {
			return channelNameRegex.MatchString(level.Field().String())
		},
	)
}
