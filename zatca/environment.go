package zatca

import (
	"fmt"
	"strings"
)

type Environment int

const (
	Sandbox Environment = iota
	Simulation
	Production
)

type environmentProfile struct {
	name                string
	baseURL             string
	certificateTemplate string
}

const gatewayHost = "https://gw-fatoora.zatca.gov.sa/e-invoicing/"

var environments = map[Environment]environmentProfile{
	Sandbox: {
		name:                "sandbox",
		baseURL:             gatewayHost + "developer-portal/",
		certificateTemplate: "TSTZATCA-Code-Signing",
	},
	Simulation: {
		name:                "simulation",
		baseURL:             gatewayHost + "simulation/",
		certificateTemplate: "PREZATCA-Code-Signing",
	},
	Production: {
		name:                "production",
		baseURL:             gatewayHost + "core/",
		certificateTemplate: "ZATCA-Code-Signing",
	},
}

// Environments returns every known environment in declaration order.
func Environments() []Environment {
	return []Environment{Sandbox, Simulation, Production}
}

func (e Environment) profile() environmentProfile {
	p, ok := environments[e]
	if !ok {
		panic("Invalid environment")
	}
	return p
}

// BaseURL is the gateway root, always ending with a slash.
func (e Environment) BaseURL() string {
	return e.profile().baseURL
}

func (e Environment) Name() string {
	return e.profile().name
}

// CertificateTemplateName is the policy name placed in the CSR certificateTemplateName extension.
func (e Environment) CertificateTemplateName() string {
	return e.profile().certificateTemplate
}

func (e Environment) Valid() bool {
	_, ok := environments[e]
	return ok
}

func (e Environment) String() string {
	if !e.Valid() {
		return fmt.Sprintf("Environment(%d)", int(e))
	}
	return e.Name()
}

func (e *Environment) UnmarshalText(text []byte) error {
	val := strings.ToLower(strings.TrimSpace(string(text)))

	for env, p := range environments {
		if p.name == val {
			*e = env
			return nil
		}
	}
	return fmt.Errorf("invalid ZATCA_ENV: %q (allowed: sandbox, simulation, production)", val)
}

func (e Environment) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("invalid environment %d", int(e))
	}
	return []byte(e.Name()), nil
}
