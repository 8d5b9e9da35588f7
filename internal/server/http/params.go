package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/stagepass/internal/server/models"
	"github.com/dmitrijs2005/stagepass/internal/server/validation"
)

var errMalformedBody = errors.New("malformed request body")

// params is a flat view of the request body. JSON objects and
// form-encoded bodies decode to the same shape; absent and null keys are
// missing.
type params map[string]string

func readParams(w http.ResponseWriter, r *http.Request) (params, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, errMalformedBody
		}
		mediaType = mt
	}

	switch mediaType {
	case "application/json":
		return readJSON(r)
	case "", "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, errMalformedBody
		}
		p := params{}
		for k, vs := range r.PostForm {
			if len(vs) > 0 {
				p[k] = vs[0]
			}
		}
		return p, nil
	default:
		return nil, errMalformedBody
	}
}

func readJSON(r *http.Request) (params, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, errMalformedBody
	}

	p := params{}
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			p[k] = val
		case json.Number:
			p[k] = val.String()
		case bool:
			p[k] = strconv.FormatBool(val)
		default:
			return nil, fmt.Errorf("%w: %q must be a scalar", errMalformedBody, k)
		}
	}
	return p, nil
}

// signUpAttributes maps request params onto the policy input. A participant
// count that is not an integer is passed on as text and reported by the
// policy together with the other violations.
func (p params) signUpAttributes() validation.SignUpAttributes {
	attrs := validation.SignUpAttributes{
		Email:                p["email"],
		Password:             p["password"],
		PasswordConfirmation: p["password_confirmation"],
		Name:                 p["name"],
		Role:                 models.Role(p["role"]),
		BirthDate:            p["birth_date"],
	}

	raw := strings.TrimSpace(p["number_of_participants"])
	if raw == "" {
		return attrs
	}
	if n, err := strconv.Atoi(raw); err == nil {
		attrs.NumberOfParticipants = &n
	} else {
		attrs.ParticipantsInput = raw
	}
	return attrs
}
