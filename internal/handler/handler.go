// Package handler holds request parsing helpers shared by the resource handlers.
package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/fieldservice-api/internal/middleware"
	"github.com/jwalitptl/fieldservice-api/internal/model"
	apperrors "github.com/jwalitptl/fieldservice-api/pkg/errors"
)

// Actor returns the authenticated user of the request
func Actor(c *gin.Context) (model.Actor, error) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return model.Actor{}, apperrors.Unauthorized("authentication required")
	}
	return actor, nil
}

// ParamID parses a uuid path parameter
func ParamID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperrors.BadRequest("invalid " + name)
	}
	return id, nil
}

// Page reads page, page_size, sort_field and sort_dir from the query string
func Page(c *gin.Context) (model.Pagination, model.SortOrder, error) {
	var p model.Pagination
	var s model.SortOrder
	if err := c.ShouldBindQuery(&p); err != nil {
		return p, s, apperrors.BadRequest("invalid pagination parameters")
	}
	if err := c.ShouldBindQuery(&s); err != nil {
		return p, s, apperrors.BadRequest("invalid sort parameters")
	}
	p.Normalize()
	return p, s, nil
}

func QueryUUID(c *gin.Context, key string) (*uuid.UUID, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperrors.BadRequest("invalid " + key)
	}
	return &id, nil
}

func QueryBool(c *gin.Context, key string) (*bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.BadRequest("invalid " + key)
	}
	return &b, nil
}

const dateLayout = "2006-01-02"

// QueryTime accepts RFC 3339 timestamps and plain dates
func QueryTime(c *gin.Context, key string) (*time.Time, error) {
	t, _, err := queryTime(c, key)
	return t, err
}

func queryTime(c *gin.Context, key string) (*time.Time, bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, false, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, false, nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return &t, true, nil
	}
	return nil, false, apperrors.BadRequest("invalid " + key + ", expected RFC 3339 or YYYY-MM-DD")
}

// DateRange reads the from and to query parameters. A plain date as 'to'
// covers that whole day, so it becomes an exclusive bound at the next
// midnight.
func DateRange(c *gin.Context) (model.DateRange, error) {
	from, err := QueryTime(c, "from")
	if err != nil {
		return model.DateRange{}, err
	}
	to, dateOnly, err := queryTime(c, "to")
	if err != nil {
		return model.DateRange{}, err
	}
	if dateOnly {
		next := to.AddDate(0, 0, 1)
		return model.DateRange{From: from, To: &next, ToExclusive: true}, nil
	}
	return model.DateRange{From: from, To: to}, nil
}

// QueryList splits comma separated and repeated values of key
func QueryList(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
