// Package arca is a client for the ARCA (ex-AFIP) electronic invoicing
// services: WSAA authentication and WSFE v1 invoice authorization.
package arca

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mjfernandez-dev/arca-go/arca/wsaa"
	"github.com/mjfernandez-dev/arca-go/arca/wsfe"
)

var logger = logrus.WithField("component", "arca")

type Environment int

const (
	Homologacion Environment = iota
	Produccion
)

func (e Environment) WsaaURL() string {
	switch e {
	case Produccion:
		return wsaa.URLProduccion
	case Homologacion:
		return wsaa.URLHomologacion
	}
	panic("Invalid environment")
}

func (e Environment) WsfeURL() string {
	switch e {
	case Produccion:
		return wsfe.URLProduccion
	case Homologacion:
		return wsfe.URLHomologacion
	}
	panic("Invalid environment")
}

func (e Environment) Name() string {
	switch e {
	case Produccion:
		return "produccion"
	case Homologacion:
		return "homologacion"
	}
	panic("Invalid environment")
}

func (e *Environment) UnmarshalText(text []byte) error {
	val := strings.ToLower(strings.TrimSpace(string(text)))

	switch val {
	case "produccion", "prod":
		*e = Produccion
	case "homologacion", "homo", "testing":
		*e = Homologacion
	default:
		return fmt.Errorf("invalid ARCA_ENV: %q (allowed: produccion, homologacion)", val)
	}
	return nil
}
