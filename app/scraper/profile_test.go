package scraper

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullPayload = `{
  "props": {
    "pageProps": {
      "displayUser": {
        "name": "John Doe",
        "phoneNumbers": {"cell": "555-0100", "business": "555-0200"},
        "email": "john@example.com",
        "businessAddress": {
          "address1": "1 Main St", "city": "Springfield", "state": "IL", "postalCode": "62701"
        },
        "businessName": "Doe Realty",
        "ratings": {"count": 42, "average": 4.8}
      }
    }
  }
}`

func TestProfileFromNextData(t *testing.T) {
	p, err := ProfileFromNextData([]byte(fullPayload))
	require.NoError(t, err)

	require.NotNil(t, p.Name)
	assert.Equal(t, "John Doe", *p.Name)
	require.NotNil(t, p.PersonalPhone)
	assert.Equal(t, "555-0100", *p.PersonalPhone)
	require.NotNil(t, p.BusinessPhone)
	assert.Equal(t, "555-0200", *p.BusinessPhone)
	require.NotNil(t, p.Email)
	assert.Equal(t, "john@example.com", *p.Email)
	require.NotNil(t, p.Address)
	assert.Equal(t, "1 Main St, Springfield, IL 62701", *p.Address)
	require.NotNil(t, p.BusinessName)
	assert.Equal(t, "Doe Realty", *p.BusinessName)
	require.NotNil(t, p.RatingsCount)
	assert.Equal(t, 42, *p.RatingsCount)
	require.NotNil(t, p.RatingsAverage)
	assert.InDelta(t, 4.8, *p.RatingsAverage, 0.001)
	assert.False(t, p.Empty())
}

func TestProfileFromNextData_MissingFields(t *testing.T) {
	p, err := ProfileFromNextData([]byte(`{"props":{"pageProps":{"displayUser":{"name":"Jane"}}}}`))
	require.NoError(t, err)

	require.NotNil(t, p.Name)
	assert.Equal(t, "Jane", *p.Name)
	assert.Nil(t, p.PersonalPhone)
	assert.Nil(t, p.BusinessPhone)
	assert.Nil(t, p.Email)
	assert.Nil(t, p.Address)
	assert.Nil(t, p.BusinessName)
	assert.Nil(t, p.RatingsCount)
	assert.Nil(t, p.RatingsAverage)

	// absent fields must serialize as nulls, downstream expects every key present
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Personal Phone":null`)
	assert.Contains(t, string(data), `"Ratings Average":null`)
}

func TestProfileFromNextData_NoDisplayUser(t *testing.T) {
	_, err := ProfileFromNextData([]byte(`{"props":{"pageProps":{}}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no displayUser")
}

func TestProfileFromNextData_BadJSON(t *testing.T) {
	_, err := ProfileFromNextData([]byte(`{not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't decode page data")
}

func TestProfile_Empty(t *testing.T) {
	assert.True(t, Profile{}.Empty())
	name := "x"
	assert.False(t, Profile{Name: &name}.Empty())
	avg := 1.5
	assert.False(t, Profile{RatingsAverage: &avg}.Empty())
}
