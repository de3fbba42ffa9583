package extractor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
	"github.com/shopspring/decimal"

	"bill-reconciliation-service/internal/models"
	"bill-reconciliation-service/pkg/errors"
	"bill-reconciliation-service/pkg/logger"
)

// Key aliases accepted in provider payload objects, in lookup order.
var (
	nameKeys     = []string{"item_name", "name", "description", "product"}
	hsnKeys      = []string{"hsn_code", "hsn", "hsncode", "hsn_sac"}
	serialKeys   = []string{"serial_number", "sn", "serial"}
	quantityKeys = []string{"quantity", "qty", "units"}
	priceKeys    = []string{"price", "amount", "value", "taxable_value"}
)

var (
	fractionPattern    = regexp.MustCompile(`^\s*(\d+)\s*/\s*(\d+)\s*$`)
	embeddedNumPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
	priceNoisePattern  = regexp.MustCompile(`[₹$,\s]`)
)

// ParseProviderResponse normalizes a provider payload, a JSON array of
// loosely typed item objects, into records for role. Entries that are not
// objects or carry no identifier are skipped. An error is returned only
// when no array can be decoded at all.
func ParseProviderResponse(raw string, role models.Role) ([]*models.Record, error) {
	if !role.IsValid() {
		return nil, errors.ValidationError(errors.CodeInvalidRole, "role", role, nil)
	}

	entries, err := decodePayload(raw)
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, "provider payload", err)
	}

	log := logger.GetGlobalLogger().WithComponent("extractor")
	records := make([]*models.Record, 0, len(entries))
	skipped := 0

	for _, entry := range entries {
		obj, ok := entry.(map[string]interface{})
		if !ok {
			skipped++
			continue
		}
		record := normalizeEntry(obj, role)
		if !record.HasIdentifier() {
			skipped++
			continue
		}
		records = append(records, record)
	}

	log.WithFields(logger.Fields{
		"strategy": "payload",
		"role":     role,
		"records":  len(records),
		"skipped":  skipped,
	}).Debug("Extracted records")

	return records, nil
}

func looksLikePayload(text string) bool {
	start := strings.Index(text, "[")
	return start != -1 && strings.LastIndex(text, "]") > start
}

// cleanPayload drops markdown fences and keeps the outermost array.
func cleanPayload(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// decodePayload tries strict JSON first, then a repaired copy, then the
// lenient hjson grammar.
func decodePayload(raw string) ([]interface{}, error) {
	payload, ok := cleanPayload(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	entries, strictErr := decodeStrict(payload)
	if strictErr == nil {
		return entries, nil
	}

	if repaired, err := jsonrepair.RepairJSON(payload); err == nil {
		if entries, err := decodeStrict(repaired); err == nil {
			return entries, nil
		}
	}

	var value interface{}
	if err := hjson.Unmarshal([]byte(payload), &value); err == nil {
		if entries, ok := value.([]interface{}); ok {
			return entries, nil
		}
	}

	return nil, strictErr
}

func decodeStrict(payload string) ([]interface{}, error) {
	decoder := json.NewDecoder(bytes.NewReader([]byte(payload)))
	decoder.UseNumber()

	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	entries, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("payload is %T, not an array", value)
	}
	return entries, nil
}

func normalizeEntry(obj map[string]interface{}, role models.Role) *models.Record {
	record := models.NewRecord()

	record.ItemName = asString(firstTruthy(obj, nameKeys))
	record.HSNCode = asString(firstTruthy(obj, hsnKeys))
	record.SerialNumber = strings.ToUpper(asString(firstTruthy(obj, serialKeys)))
	if record.ItemName == "" && record.HSNCode != "" {
		record.ItemName = "HSN: " + record.HSNCode
	}

	record.Quantity = coerceQuantity(firstTruthy(obj, quantityKeys))
	record.SetPrice(role, coercePrice(firstTruthy(obj, priceKeys)))

	return record
}

// firstTruthy returns the first value under keys that is neither null,
// false, zero nor empty.
func firstTruthy(obj map[string]interface{}, keys []string) interface{} {
	for _, key := range keys {
		if v, ok := obj[key]; ok && truthy(v) {
			return v
		}
	}
	return nil
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	default:
		return true
	}
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// coerceQuantity floors numeric values and reads strings as a fraction or
// the first embedded number. Anything unusable becomes 1.
func coerceQuantity(v interface{}) int {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return models.MinQuantity
		}
		return floorQuantity(f)
	case float64:
		return floorQuantity(t)
	case string:
		if m := fractionPattern.FindStringSubmatch(t); m != nil {
			num, errNum := strconv.ParseFloat(m[1], 64)
			den, errDen := strconv.ParseFloat(m[2], 64)
			if errNum != nil || errDen != nil || den == 0 {
				return models.MinQuantity
			}
			return floorQuantity(num / den)
		}
		if m := embeddedNumPattern.FindString(t); m != "" {
			f, err := strconv.ParseFloat(m, 64)
			if err != nil {
				return models.MinQuantity
			}
			return floorQuantity(f)
		}
	}
	return models.MinQuantity
}

func floorQuantity(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return models.MinQuantity
	}
	floored := math.Floor(f)
	if floored < models.MinQuantity || floored > models.MaxQuantity {
		return models.MinQuantity
	}
	return int(floored)
}

// coercePrice strips currency symbols, separators and whitespace. Values
// that do not parse, and negative values, become zero.
func coercePrice(v interface{}) decimal.Decimal {
	var price decimal.Decimal
	var err error

	switch t := v.(type) {
	case json.Number:
		price, err = decimal.NewFromString(t.String())
	case float64:
		price = decimal.NewFromFloat(t)
	case string:
		price, err = decimal.NewFromString(priceNoisePattern.ReplaceAllString(t, ""))
	default:
		return decimal.Zero
	}

	if err != nil || price.IsNegative() {
		return decimal.Zero
	}
	return price
}
