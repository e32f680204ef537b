package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mjfernandez-dev/arca-go/arca"
	"github.com/mjfernandez-dev/arca-go/arca/util"
)

func main() {

	logrus.SetLevel(logrus.DebugLevel)

	cuit := util.GetEnvOrFailed("ARCA_CUIT")
	certPath := util.GetEnvOrFailed("ARCA_CERT")
	keyPath := util.GetEnvOrFailed("ARCA_KEY")

	cuitNum, err := strconv.ParseInt(cuit, 10, 64)
	if err != nil {
		panic(err)
	}

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	client, err := arca.New(arca.Config{
		Environment:     arca.Homologacion,
		Cuit:            cuitNum,
		CertificatePath: certPath,
		PrivateKeyPath:  keyPath,
		HTTPClient:      httpClient,
	})
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	ultimo, err := client.UltimoComprobanteAutorizado(ctx, 1, 6)
	if err != nil {
		panic(err)
	}

	fmt.Println("último comprobante autorizado:", ultimo)

	cot, err := client.ConsultarCotizacion(ctx, "DOL")
	if err != nil {
		panic(err)
	}

	fmt.Println("cotización DOL:", cot)
}
