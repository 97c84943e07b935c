package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() Record {
	return Record{
		Dataset:    "orders",
		Time:       time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Dimensions: map[string]string{"region": "emea", "channel": "web"},
		Measures:   map[string]float64{"amount": 129.5, "items": 3},
	}
}

func TestRecordIDDeterminism(t *testing.T) {
	id1, err := RecordID(sampleRecord())
	require.NoError(t, err)
	id2, err := RecordID(sampleRecord())
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "RecordID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestRecordIDIgnoresTimeZone(t *testing.T) {
	r1 := sampleRecord()
	r2 := sampleRecord()
	tokyo := time.FixedZone("JST", 9*60*60)
	r2.Time = r1.Time.In(tokyo)

	assert.Equal(t, MustRecordID(r1), MustRecordID(r2))
}

func TestRecordIDIgnoresSeqAndID(t *testing.T) {
	r1 := sampleRecord()
	r2 := sampleRecord()
	r2.Seq = 99
	r2.ID = "something"

	assert.Equal(t, MustRecordID(r1), MustRecordID(r2))
}

func TestRecordIDNormalizesUnicode(t *testing.T) {
	r1 := sampleRecord()
	r1.Dimensions["city"] = "Montr\u00e9al"
	r2 := sampleRecord()
	r2.Dimensions["city"] = "Montre\u0301al"

	assert.Equal(t, MustRecordID(r1), MustRecordID(r2))
}

func TestRecordIDChangesWithContent(t *testing.T) {
	base := MustRecordID(sampleRecord())

	changed := sampleRecord()
	changed.Measures["amount"] = 129.51
	assert.NotEqual(t, base, MustRecordID(changed), "measure change")

	changed = sampleRecord()
	changed.Dimensions["region"] = "apac"
	assert.NotEqual(t, base, MustRecordID(changed), "dimension change")

	changed = sampleRecord()
	changed.Dataset = "refunds"
	assert.NotEqual(t, base, MustRecordID(changed), "dataset change")

	changed = sampleRecord()
	changed.Time = changed.Time.Add(time.Millisecond)
	assert.NotEqual(t, base, MustRecordID(changed), "time change")
}

func TestDigestDomainSeparation(t *testing.T) {
	data := []byte("payload")
	assert.NotEqual(t, Digest(DomainRecord, data), Digest(DomainAPIKey, data))
}

func TestDigestValue(t *testing.T) {
	d1, err := DigestValue(DomainDashboard, map[string]any{"a": "1"})
	require.NoError(t, err)
	d2, err := DigestValue(DomainDashboard, map[string]string{"a": "1"})
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	_, err = DigestValue(DomainDashboard, nil)
	assert.Error(t, err)
}
