package wsaa

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"

	"github.com/mjfernandez-dev/arca-go/arca/errs"
	"github.com/mjfernandez-dev/arca-go/arca/model"
	"github.com/mjfernandez-dev/arca-go/arca/util"
)

var logger = logrus.WithField("component", "arca.wsaa")

const (
	soapenvNS = "http://schemas.xmlsoap.org/soap/envelope/"
	wsaaNS    = "http://wsaa.view.sua.dvadac.desein.afip.gov"

	// Endpoints of the WSAA LoginCms service.
	URLHomologacion = "https://wsaahomo.afip.gov.ar/ws/services/LoginCms"
	URLProduccion   = "https://wsaa.afip.gov.ar/ws/services/LoginCms"

	defaultTimeout = 30 * time.Second
)

// Client is the gateway to the WSAA authentication endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient builds a WSAA client for endpoint. A nil httpClient gets a
// default with a 30 s timeout.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{endpoint: endpoint, httpClient: httpClient}
}

// LoginCms posts the signed TRA and parses the credential out of the
// loginTicketResponse. signedTRA is the Base64 CMS produced by
// LoginTicket.Sign.
func (c *Client) LoginCms(ctx context.Context, signedTRA string) (model.Credential, error) {
	envelope, err := buildLoginEnvelope(signedTRA)
	if err != nil {
		return model.Credential{}, errs.Auth(err, "no se pudo construir el request SOAP")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(envelope))
	if err != nil {
		return model.Credential{}, errs.Auth(err, "request inválido")
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	// WSAA requires the header present but empty.
	req.Header.Set("SOAPAction", "")

	logger.Debugf("login WSAA contra %s", c.endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Credential{}, errs.Auth(err, "error de comunicación con WSAA")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Credential{}, errs.Auth(err, "no se pudo leer la respuesta de WSAA")
	}

	if util.HttpTraceEnabled() {
		logger.Debugf("respuesta WSAA (%d):\n%s", resp.StatusCode, body)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.Credential{}, &errs.AuthError{
			Message:    "WSAA devolvió un estado de error",
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	return parseLoginResponse(body)
}

func buildLoginEnvelope(signedTRA string) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("soapenv:Envelope")
	env.CreateAttr("xmlns:soapenv", soapenvNS)
	env.CreateAttr("xmlns:wsaa", wsaaNS)

	env.CreateElement("soapenv:Header")
	body := env.CreateElement("soapenv:Body")
	login := body.CreateElement("wsaa:loginCms")
	login.CreateElement("wsaa:in0").SetText(signedTRA)

	return doc.WriteToBytes()
}

func parseLoginResponse(body []byte) (model.Credential, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return model.Credential{}, errs.Auth(err, "respuesta WSAA no es XML válido")
	}

	loginReturn := doc.FindElement("//loginCmsReturn")
	if loginReturn == nil {
		if fault := doc.FindElement("//faultstring"); fault != nil {
			return model.Credential{}, errs.Auth(nil, "WSAA devolvió un fault: %s", fault.Text())
		}
		return model.Credential{}, errs.Auth(nil, "respuesta WSAA inválida: falta loginCmsReturn")
	}

	// The loginTicketResponse travels XML-escaped inside the element text;
	// etree already decoded the entities, so the text is the inner document.
	inner := etree.NewDocument()
	if err := inner.ReadFromString(loginReturn.Text()); err != nil {
		return model.Credential{}, errs.Auth(err, "no se pudo interpretar el loginTicketResponse")
	}

	credentials := inner.FindElement("//credentials")
	if credentials == nil {
		return model.Credential{}, errs.Auth(nil, "falta el elemento credentials en la respuesta")
	}

	var token, sign string
	if e := credentials.SelectElement("token"); e != nil {
		token = strings.TrimSpace(e.Text())
	}
	if e := credentials.SelectElement("sign"); e != nil {
		sign = strings.TrimSpace(e.Text())
	}
	if token == "" || sign == "" {
		return model.Credential{}, errs.Auth(nil, "WSAA no devolvió token o sign")
	}

	cred := model.Credential{Token: token, Sign: sign}
	if e := inner.FindElement("//expirationTime"); e != nil {
		exp, err := parseExpiration(strings.TrimSpace(e.Text()))
		if err != nil {
			logger.Warnf("expirationTime no reconocido %q: %v", e.Text(), err)
		} else {
			cred.Expiration = exp
		}
	}
	return cred, nil
}

// expirationLayouts covers the offset spellings WSAA has been seen to emit.
var expirationLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
}

func parseExpiration(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range expirationLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
