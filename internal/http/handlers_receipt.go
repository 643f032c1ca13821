package http

import (
	"net/http"
	"sync/atomic"

	"expensa/internal/receipt"
)

type receiptInput struct {
	Image string `json:"image"`
}

type receiptDTO struct {
	Response   string         `json:"response"`
	Items      []receipt.Item `json:"items"`
	TotalCents int64          `json:"total_cents"`
	Total      string         `json:"total"`
}

// handleParseReceipt itemizes a receipt photo. The image is a data URI or
// bare base64 string.
func (s *Server) handleParseReceipt(w http.ResponseWriter, r *http.Request) {
	if s.deps.Receipts == nil {
		writeError(w, r, receipt.ErrNotConfigured)
		return
	}
	// base64 inflates by a third; leave room for the JSON around it.
	limit := int64(s.opts.ReceiptMaxBytes)*4/3 + 4096
	var in receiptInput
	if err := decodeJSON(r, limit, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	img, err := receipt.ParseImage(in.Image, s.opts.ReceiptMaxBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Receipts.Parse(r.Context(), img)
	if err != nil {
		writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.metrics.receiptsParsed, 1)

	items := res.Items
	if items == nil {
		items = []receipt.Item{}
	}
	writeJSON(w, http.StatusOK, receiptDTO{
		Response:   res.Pretty,
		Items:      items,
		TotalCents: res.Total.Cents,
		Total:      res.Total.String(),
	})
}
