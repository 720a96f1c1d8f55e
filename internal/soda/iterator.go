package soda

import (
	"context"
	"strconv"
	"time"

	"github.com/GodspeedAgent/dpd-dispatch/internal/logger"
	"github.com/GodspeedAgent/dpd-dispatch/internal/query"
)

// pageSize is the page length the full-fetch iterator drives internally.
const pageSize = 1000

// Iterator is a lazy, finite, non-restartable sequence over every record a
// query matches. Each Next pulls from a buffered page, fetching at most one
// new page when the buffer runs out; a short page marks the end. The caller
// cancels by simply not calling Next again, or through the context.
type Iterator struct {
	client *Client
	params query.Params
	format query.OutputFormat

	buf    []Record
	pos    int
	offset int
	done   bool
	err    error
}

func newIterator(c *Client, params query.Params, format query.OutputFormat) *Iterator {
	// The iterator owns pagination; whatever limit/offset the query
	// carried is discarded.
	params.Limit = 0
	params.Offset = 0
	return &Iterator{
		client: c,
		params: params,
		format: format,
	}
}

// Next returns the next record. ok is false when the sequence is exhausted
// or a fetch failed; check Err to tell the two apart.
func (it *Iterator) Next(ctx context.Context) (Record, bool) {
	if it.err != nil {
		return nil, false
	}

	if it.pos >= len(it.buf) {
		if it.done {
			return nil, false
		}
		if err := it.fetchPage(ctx); err != nil {
			it.err = err
			return nil, false
		}
		if len(it.buf) == 0 {
			return nil, false
		}
	}

	record := it.buf[it.pos]
	it.pos++
	return record, true
}

// Err reports the first fetch error, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Collect drains the iterator into a slice.
func (it *Iterator) Collect(ctx context.Context) ([]Record, error) {
	var records []Record
	for {
		record, ok := it.Next(ctx)
		if !ok {
			break
		}
		records = append(records, record)
	}
	return records, it.err
}

func (it *Iterator) fetchPage(ctx context.Context) error {
	values := it.params.Encode()
	values.Set("$limit", strconv.Itoa(pageSize))
	values.Set("$offset", strconv.Itoa(it.offset))

	start := time.Now()
	page, err := it.client.fetch(ctx, values, it.format)
	if err != nil {
		return err
	}

	it.client.log.Debug("fetched page",
		logger.String("dataset", it.client.profile.DatasetID),
		logger.Int("offset", it.offset),
		logger.Int("count", len(page)))
	if it.client.recorder != nil {
		it.client.recorder.RecordQuery(
			it.client.profile.DatasetID, modePage, time.Since(start), len(page))
	}

	it.offset += len(page)
	if len(page) < pageSize {
		it.done = true
	}
	it.buf = page
	it.pos = 0
	return nil
}
