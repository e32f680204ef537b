package wsfe

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mjfernandez-dev/arca-go/arca/errs"
	"github.com/mjfernandez-dev/arca-go/arca/util"
)

var logger = logrus.WithField("component", "arca.wsfe")

const (
	soap12NS = "http://www.w3.org/2003/05/soap-envelope"
	feNS     = "http://ar.gov.afip.dif.FEV1/"

	// Endpoints of the WSFE v1 service.
	URLHomologacion = "https://wswhomo.afip.gov.ar/wsfev1/service.asmx"
	URLProduccion   = "https://servicios1.afip.gov.ar/wsfev1/service.asmx"

	defaultTimeout = 30 * time.Second
)

// Client is the gateway to the WSFE invoicing endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient builds a WSFE client for endpoint. A nil httpClient gets a
// default with a 30 s timeout.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{endpoint: endpoint, httpClient: httpClient}
}

// FECompUltimoAutorizado queries the last authorized invoice number for a
// sales point and invoice type. Returns 0 when the service reports no
// number; a fault array becomes a ServiceError.
func (c *Client) FECompUltimoAutorizado(ctx context.Context, auth Auth, ptoVta, cbteTipo int) (int64, error) {
	doc, op := newOperation("FECompUltimoAutorizado", auth)
	op.CreateElement("ar:PtoVta").SetText(strconv.Itoa(ptoVta))
	op.CreateElement("ar:CbteTipo").SetText(strconv.Itoa(cbteTipo))

	resp, err := c.send(ctx, doc, feNS+"FECompUltimoAutorizado")
	if err != nil {
		return 0, err
	}

	if e := resp.FindElement("//CbteNro"); e != nil {
		n, err := strconv.ParseInt(strings.TrimSpace(e.Text()), 10, 64)
		if err == nil {
			return n, nil
		}
	}

	if faults := parseErrs(resp); len(faults) > 0 {
		return 0, &errs.ServiceError{Code: faults[0].Code, Message: faults[0].Msg}
	}

	return 0, nil
}

// FECAESolicitar requests CAE authorization for a batch of invoices. The
// response body is returned as-is for the caller to classify; only
// transport and protocol failures become errors.
func (c *Client) FECAESolicitar(ctx context.Context, auth Auth, cab CabRequest, dets []DetRequest) (*CAEResponse, error) {
	doc, op := newOperation("FECAESolicitar", auth)

	req := op.CreateElement("ar:FeCAEReq")
	cabReq := req.CreateElement("ar:FeCabReq")
	cabReq.CreateElement("ar:CantReg").SetText(strconv.Itoa(cab.CantReg))
	cabReq.CreateElement("ar:PtoVta").SetText(strconv.Itoa(cab.PtoVta))
	cabReq.CreateElement("ar:CbteTipo").SetText(strconv.Itoa(cab.CbteTipo))

	detReq := req.CreateElement("ar:FeDetReq")
	for i := range dets {
		appendDet(detReq, &dets[i])
	}

	resp, err := c.send(ctx, doc, feNS+"FECAESolicitar")
	if err != nil {
		return nil, err
	}

	out := &CAEResponse{Errores: parseErrs(resp)}
	for _, det := range resp.FindElements("//FECAEDetResponse") {
		r := Resultado{
			Resultado: childText(det, "Resultado"),
			CAE:       childText(det, "CAE"),
			CAEFchVto: childText(det, "CAEFchVto"),
		}
		if v := childText(det, "CbteDesde"); v != "" {
			r.CbteDesde, _ = strconv.ParseInt(v, 10, 64)
		}
		for _, obs := range det.FindElements(".//Obs") {
			code, _ := strconv.Atoi(childText(obs, "Code"))
			r.Observaciones = append(r.Observaciones, Observacion{
				Code: code,
				Msg:  childText(obs, "Msg"),
			})
		}
		out.Resultados = append(out.Resultados, r)
	}

	return out, nil
}

// FEParamGetCotizacion queries the official exchange rate for a currency.
func (c *Client) FEParamGetCotizacion(ctx context.Context, auth Auth, monID string) (decimal.Decimal, error) {
	doc, op := newOperation("FEParamGetCotizacion", auth)
	op.CreateElement("ar:MonId").SetText(monID)

	resp, err := c.send(ctx, doc, feNS+"FEParamGetCotizacion")
	if err != nil {
		return decimal.Zero, err
	}

	if e := resp.FindElement("//MonCotiz"); e != nil {
		cot, err := decimal.NewFromString(strings.TrimSpace(e.Text()))
		if err != nil {
			return decimal.Zero, errs.Service(err, "cotización ilegible para %s", monID)
		}
		return cot, nil
	}

	if faults := parseErrs(resp); len(faults) > 0 {
		return decimal.Zero, &errs.ServiceError{Code: faults[0].Code, Message: faults[0].Msg}
	}

	return decimal.Zero, errs.Service(nil, "WSFE no devolvió cotización para %s", monID)
}

// newOperation starts a SOAP 1.2 envelope with the operation element and its
// Auth block, returning the document and the operation element.
func newOperation(operation string, auth Auth) (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", soap12NS)
	env.CreateAttr("xmlns:ar", feNS)

	body := env.CreateElement("soap:Body")
	op := body.CreateElement("ar:" + operation)

	authEl := op.CreateElement("ar:Auth")
	authEl.CreateElement("ar:Token").SetText(auth.Token)
	authEl.CreateElement("ar:Sign").SetText(auth.Sign)
	authEl.CreateElement("ar:Cuit").SetText(strconv.FormatInt(auth.Cuit, 10))

	return doc, op
}

func appendDet(parent *etree.Element, det *DetRequest) {
	e := parent.CreateElement("ar:FECAEDetRequest")
	e.CreateElement("ar:Concepto").SetText(strconv.Itoa(det.Concepto))
	e.CreateElement("ar:DocTipo").SetText(strconv.Itoa(det.DocTipo))
	e.CreateElement("ar:DocNro").SetText(strconv.FormatInt(det.DocNro, 10))
	e.CreateElement("ar:CbteDesde").SetText(strconv.FormatInt(det.CbteDesde, 10))
	e.CreateElement("ar:CbteHasta").SetText(strconv.FormatInt(det.CbteHasta, 10))
	e.CreateElement("ar:CbteFch").SetText(det.CbteFch)
	e.CreateElement("ar:ImpTotal").SetText(det.ImpTotal)
	e.CreateElement("ar:ImpTotConc").SetText(det.ImpTotConc)
	e.CreateElement("ar:ImpNeto").SetText(det.ImpNeto)
	e.CreateElement("ar:ImpOpEx").SetText(det.ImpOpEx)
	e.CreateElement("ar:ImpIVA").SetText(det.ImpIVA)
	e.CreateElement("ar:ImpTrib").SetText(det.ImpTrib)
	e.CreateElement("ar:MonId").SetText(det.MonId)
	e.CreateElement("ar:MonCotiz").SetText(det.MonCotiz)
	e.CreateElement("ar:CondicionIVAReceptorId").SetText(strconv.Itoa(det.CondicionIVAReceptorId))

	if det.FchServDesde != "" {
		e.CreateElement("ar:FchServDesde").SetText(det.FchServDesde)
	}
	if det.FchServHasta != "" {
		e.CreateElement("ar:FchServHasta").SetText(det.FchServHasta)
	}
	if det.FchVtoPago != "" {
		e.CreateElement("ar:FchVtoPago").SetText(det.FchVtoPago)
	}

	if len(det.CbtesAsoc) > 0 {
		list := e.CreateElement("ar:CbtesAsoc")
		for _, a := range det.CbtesAsoc {
			asoc := list.CreateElement("ar:CbteAsoc")
			asoc.CreateElement("ar:Tipo").SetText(strconv.Itoa(a.Tipo))
			asoc.CreateElement("ar:PtoVta").SetText(strconv.Itoa(a.PtoVta))
			asoc.CreateElement("ar:Nro").SetText(strconv.FormatInt(a.Nro, 10))
			if a.Cuit != 0 {
				asoc.CreateElement("ar:Cuit").SetText(strconv.FormatInt(a.Cuit, 10))
			}
			if a.Fecha != "" {
				asoc.CreateElement("ar:CbteFch").SetText(a.Fecha)
			}
		}
	}

	if len(det.Tributos) > 0 {
		list := e.CreateElement("ar:Tributos")
		for _, t := range det.Tributos {
			trib := list.CreateElement("ar:Tributo")
			trib.CreateElement("ar:Id").SetText(strconv.Itoa(t.Id))
			if t.Desc != "" {
				trib.CreateElement("ar:Desc").SetText(t.Desc)
			}
			trib.CreateElement("ar:BaseImp").SetText(t.BaseImp)
			trib.CreateElement("ar:Alic").SetText(t.Alic)
			trib.CreateElement("ar:Importe").SetText(t.Importe)
		}
	}

	if len(det.Iva) > 0 {
		list := e.CreateElement("ar:Iva")
		for _, iva := range det.Iva {
			alic := list.CreateElement("ar:AlicIva")
			alic.CreateElement("ar:Id").SetText(strconv.Itoa(iva.Id))
			alic.CreateElement("ar:BaseImp").SetText(iva.BaseImp)
			alic.CreateElement("ar:Importe").SetText(iva.Importe)
		}
	}

	if len(det.Opcionales) > 0 {
		list := e.CreateElement("ar:Opcionales")
		for _, o := range det.Opcionales {
			opc := list.CreateElement("ar:Opcional")
			opc.CreateElement("ar:Id").SetText(o.Id)
			opc.CreateElement("ar:Valor").SetText(o.Valor)
		}
	}
}

func (c *Client) send(ctx context.Context, doc *etree.Document, soapAction string) (*etree.Document, error) {
	payload, err := doc.WriteToBytes()
	if err != nil {
		return nil, errs.Service(err, "no se pudo serializar el request SOAP")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errs.Service(err, "request inválido")
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", soapAction)

	if util.HttpTraceEnabled() {
		logger.Debugf("request WSFE %s:\n%s", soapAction, payload)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Service(err, "error de comunicación con WSFE")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Service(err, "no se pudo leer la respuesta de WSFE")
	}

	if util.HttpTraceEnabled() {
		logger.Debugf("respuesta WSFE (%d):\n%s", resp.StatusCode, body)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errs.Service(nil, "WSFE devolvió estado %d", resp.StatusCode)
	}

	out := etree.NewDocument()
	if err := out.ReadFromBytes(body); err != nil {
		return nil, errs.Service(err, "respuesta WSFE no es XML válido")
	}
	return out, nil
}

func parseErrs(doc *etree.Document) []Err {
	var faults []Err
	for _, e := range doc.FindElements("//Errors/Err") {
		code, _ := strconv.Atoi(childText(e, "Code"))
		faults = append(faults, Err{Code: code, Msg: childText(e, "Msg")})
	}
	return faults
}

func childText(e *etree.Element, tag string) string {
	if c := e.SelectElement(tag); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}
