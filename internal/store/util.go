package store

import (
	"encoding/json"

	"github.com/meetsmatch/notifyengine/internal/apperr"
	"github.com/meetsmatch/notifyengine/internal/models"
)

func marshalState(v interface{}) (models.JSONPayload, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, apperr.NewInternalError("marshal sensor state", err)
	}
	return models.JSONPayload(raw), nil
}
