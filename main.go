package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/alapierre/go-zatca-client/zatca/csr"
	"github.com/alapierre/go-zatca-client/zatca/model"
	"github.com/alapierre/go-zatca-client/zatca/service"
	"github.com/alapierre/go-zatca-client/zatca/util"
	"github.com/sirupsen/logrus"
)

func main() {

	logrus.SetLevel(logrus.DebugLevel)

	otp := util.GetEnvOrFailed("ZATCA_OTP")
	invoicePath := util.GetEnvOrFailed("ZATCA_INVOICE")
	vat := util.GetEnvOrDefault("ZATCA_VAT", "399999999900003")

	cfg, err := zatca.LoadConfig()
	if err != nil {
		panic(err)
	}

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	store, err := model.NewCredentialStore(util.GetEnvOrDefault("ZATCA_CREDENTIALS", "credentials"))
	if err != nil {
		panic(err)
	}

	svc, err := service.New(*cfg, httpClient, service.WithStore(store))
	if err != nil {
		panic(err)
	}

	sample, err := os.ReadFile(invoicePath)
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	onboarding, err := svc.Onboard(ctx, service.OnboardRequest{
		Profile: csr.Profile{
			CommonName:             "TST-886431145-" + vat,
			OrganizationName:       "Maximum Speed Tech Supply LTD",
			OrganizationalUnitName: "Riyadh Branch",
			Country:                "SA",
			SerialNumber:           "1-TST|2-TST|3-ed22f1d8-e6a2-1118-9b58-d9a8f11e445f",
			OrganizationIdentifier: vat,
			Address:                "RRRD2929",
			InvoiceType:            "1100",
			BusinessCategory:       "Supply activities",
		},
		OTP:     otp,
		Samples: [][]byte{sample},
		Name:    vat,
	})
	if err != nil {
		panic(err)
	}

	fmt.Println("compliance request id:", onboarding.Compliance.RequestID)
	fmt.Println("production request id:", onboarding.Production.RequestID)

	processed, err := svc.ProcessInvoice(*onboarding.Production, onboarding.Key, sample)
	if err != nil {
		panic(err)
	}

	res, err := svc.Submit(ctx, *onboarding.Production, processed)
	if err != nil {
		panic(err)
	}

	fmt.Println(processed.Canonical.UUID, res.Status(), res.IsSubmitted)
}
