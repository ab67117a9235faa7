package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zest/productapi/internal/domain/product"
)

// A product's version is its last audit stamp, so the tag only moves when
// Create or Update wrote the row.
func productVersion(p product.Product) string {
	at := p.CreatedOn
	if p.ModifiedOn != nil {
		at = *p.ModifiedOn
	}
	return strconv.FormatInt(p.ID, 10) + "." + strconv.FormatInt(at.UnixNano(), 36)
}

func productETag(p product.Product) string {
	return `"p-` + productVersion(p) + `"`
}

func pageETag(pg product.Page) string {
	h := sha256.New()
	h.Write([]byte(strconv.Itoa(pg.Page) + "/" + strconv.Itoa(pg.Size) + "/" + strconv.Itoa(pg.TotalElements)))
	for _, p := range pg.Content {
		h.Write([]byte{';'})
		h.Write([]byte(productVersion(p)))
	}
	return `"l-` + hex.EncodeToString(h.Sum(nil)[:12]) + `"`
}

// respondTagged answers 304 when If-None-Match already names etag.
func respondTagged(ctx *gin.Context, etag, message string, data interface{}) {
	ctx.Header("ETag", etag)

	if etagMatches(ctx.GetHeader("If-None-Match"), etag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	RespondOK(ctx, message, data)
}

func etagMatches(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}

	for _, candidate := range strings.Split(header, ",") {
		// weak comparison: W/"x" matches "x"
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag {
			return true
		}
	}
	return false
}
