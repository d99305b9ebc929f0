package importer

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Fingerprints guard against accidental duplication, not tampering, so MD5 is
// enough. Field order and separator are fixed: any reordering would silently
// invalidate every stored fingerprint.
const fingerprintSeparator = "|"

func digestFields(fields []string) string {
	sum := md5.Sum([]byte(strings.Join(fields, fingerprintSeparator)))
	return hex.EncodeToString(sum[:])
}

func fingerprintDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// FileFingerprint digests the whole file by streaming, so large uploads never
// have to sit in memory for hashing.
func FileFingerprint(reader io.Reader) (string, error) {
	hasher := md5.New()
	if _, err := io.Copy(hasher, reader); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// RowFingerprint covers the business-relevant fields of one deal row.
// Timestamps and surrogate ids stay out so an unchanged row re-imported is
// provably a no-op.
func RowFingerprint(supplierId int, contractNumber string, dateFrom *time.Time, dateTo *time.Time,
	amount decimal.Decimal, status string, agentName string) string {
	return digestFields([]string{
		strconv.Itoa(supplierId),
		contractNumber,
		fingerprintDate(dateFrom),
		fingerprintDate(dateTo),
		amount.String(),
		status,
		agentName,
	})
}

// HeaderFingerprint covers the aggregate fields of one monthly header.
func HeaderFingerprint(supplierId int, agentName string, contractType string, year int, month int,
	totalAmount decimal.Decimal, totalCommission decimal.Decimal) string {
	return digestFields([]string{
		strconv.Itoa(supplierId),
		agentName,
		contractType,
		strconv.Itoa(year),
		strconv.Itoa(month),
		totalAmount.String(),
		totalCommission.String(),
	})
}
