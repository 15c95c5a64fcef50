package main

// Requests arrive either as JSON (API clients) or as forms (curl one-liners in cron jobs).
// Both are parsed into the same structures here.

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/function61/gokit/jsonfile"
	"github.com/function61/lovebeat/pkg/lbdomain"
	"github.com/function61/lovebeat/pkg/lbstate"
	"github.com/function61/lovebeat/pkg/lbtypes"
)

func isJsonRequest(r *http.Request) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mediaType == "application/json"
}

// empty body is the same as "{}"
func unmarshalJsonBody(r *http.Request, out interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := jsonfile.Unmarshal(bytes.NewReader(body), out, true); err != nil {
		return fmt.Errorf("%w: %v", lbdomain.ErrValidation, err)
	}

	return nil
}

// heartbeat=warning:20, heartbeat=error:30 (bare number = error), labels=a,b
func parseTriggerRequest(r *http.Request) (lbstate.TriggerRequest, error) {
	if isJsonRequest(r) {
		req := lbtypes.TriggerRequest{}
		if err := unmarshalJsonBody(r, &req); err != nil {
			return lbstate.TriggerRequest{}, err
		}

		return req.AsInput(), nil
	}

	if err := r.ParseForm(); err != nil {
		return lbstate.TriggerRequest{}, fmt.Errorf("%w: %v", lbdomain.ErrValidation, err)
	}

	req := lbstate.TriggerRequest{}

	for _, labels := range r.Form["labels"] {
		req.Labels = append(req.Labels, splitLabels(labels)...)
	}

	for _, heartbeat := range r.Form["heartbeat"] {
		typ, secondsStr := "error", heartbeat
		if pos := strings.Index(heartbeat, ":"); pos != -1 {
			typ, secondsStr = heartbeat[:pos], heartbeat[pos+1:]
		}

		seconds, err := strconv.ParseInt(secondsStr, 10, 64)
		if err != nil {
			return lbstate.TriggerRequest{}, fmt.Errorf("%w: heartbeat: not a number: %s", lbdomain.ErrValidation, secondsStr)
		}

		switch typ {
		case "warning":
			req.Warning = &seconds
		case "error":
			req.Error = &seconds
		default:
			return lbstate.TriggerRequest{}, fmt.Errorf("%w: heartbeat: unknown type: %s", lbdomain.ErrValidation, typ)
		}
	}

	return req, nil
}

// "a, b,,c" => [a b c]
func splitLabels(serialized string) []string {
	labels := []string{}

	for _, label := range strings.Split(serialized, ",") {
		if label = strings.TrimSpace(label); label != "" {
			labels = append(labels, label)
		}
	}

	return labels
}

// type=soft|hard, expiry=<seconds>
func parseMaintRequest(r *http.Request) (lbtypes.MaintRequest, error) {
	req := lbtypes.MaintRequest{}

	if isJsonRequest(r) {
		return req, unmarshalJsonBody(r, &req)
	}

	if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("%w: %v", lbdomain.ErrValidation, err)
	}

	if typ := r.Form.Get("type"); typ != "" {
		parsed, err := lbdomain.ParseMaintType(typ)
		if err != nil {
			return req, err
		}
		req.Type = parsed
	}

	if expiryStr := r.Form.Get("expiry"); expiryStr != "" {
		expiry, err := strconv.ParseInt(expiryStr, 10, 64)
		if err != nil {
			return req, fmt.Errorf("%w: expiry: not a number: %s", lbdomain.ErrValidation, expiryStr)
		}
		req.Expiry = &expiry
	}

	return req, nil
}

// alert=warning:gtalk:foo@example.com (recipients may contain colons themselves)
func parseLabelConfig(r *http.Request) (lbdomain.LabelConfig, error) {
	conf := lbdomain.LabelConfig{}

	if isJsonRequest(r) {
		return conf, unmarshalJsonBody(r, &conf)
	}

	if err := r.ParseForm(); err != nil {
		return conf, fmt.Errorf("%w: %v", lbdomain.ErrValidation, err)
	}

	return labelConfigFromSpecs(r.Form["alert"])
}

func parseAlertSpec(spec string) (lbdomain.Status, string, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("%w: alert: expecting <warning|error>:<recipient>, got %s", lbdomain.ErrValidation, spec)
	}

	switch typ := lbdomain.Status(parts[0]); typ {
	case lbdomain.StatusWarning, lbdomain.StatusError:
		return typ, parts[1], nil
	default:
		return "", "", fmt.Errorf("%w: alert: unknown type: %s", lbdomain.ErrValidation, parts[0])
	}
}
