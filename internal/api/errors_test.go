package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/newsletter/internal/segmentation"
	"github.com/ignite/newsletter/internal/service/campaign"
	"github.com/ignite/newsletter/internal/service/list"
	"github.com/ignite/newsletter/internal/service/subscriber"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{list.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("segment campaign c-1: %w", list.ErrNotFound), http.StatusNotFound},
		{campaign.ErrListNotFound, http.StatusNotFound},
		{list.ErrInvalidState, http.StatusBadRequest},
		{fmt.Errorf("%w: age: unknown operator", segmentation.ErrInvalidFilter), http.StatusBadRequest},
		{list.ErrIngestion, http.StatusBadRequest},
		{subscriber.ErrDuplicate, http.StatusConflict},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}
