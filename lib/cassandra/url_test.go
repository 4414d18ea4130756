package cassandra

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseURLWithAdditionalHosts(t *testing.T) {

	descriptor, err := ParseURL("cassandra://cass1.example.org:9042/my_keyspace?host=cass2.example.org&host=cass3.example.org")
	if !assert.NoError(t, err) {
		return
	}

	assert.Equal(t, []string{"cass1.example.org", "cass2.example.org", "cass3.example.org"}, descriptor.Hosts, "expected every host named by the url")
	assert.Equal(t, 9042, descriptor.Port, "expected the url port")
	assert.Equal(t, "my_keyspace", descriptor.Keyspace, "expected the url path as keyspace")
	assert.Equal(t, "cass1.example.org", descriptor.Primary(), "expected the url host as primary")
}

func TestParseURLSingleHost(t *testing.T) {

	descriptor, err := ParseURL("cassandra://localhost:9042/pillar_test")
	if !assert.NoError(t, err) {
		return
	}

	assert.Equal(t, []string{"localhost"}, descriptor.Hosts)
	assert.Equal(t, 9042, descriptor.Port)
	assert.Equal(t, "pillar_test", descriptor.Keyspace)
}

func TestParseURLWithoutPort(t *testing.T) {

	descriptor, err := ParseURL("cassandra://localhost/pillar_test")
	if !assert.NoError(t, err) {
		return
	}

	assert.Equal(t, -1, descriptor.Port, "expected -1 when the url names no port")
}

func TestParseURLKeepsQueryOrder(t *testing.T) {

	descriptor, err := ParseURL("cassandra://h1/ks?host=h3&host=h2")
	if !assert.NoError(t, err) {
		return
	}

	assert.Equal(t, []string{"h1", "h3", "h2"}, descriptor.Hosts, "expected hosts in query string order")
}

func TestParseURLIgnoresOtherParameters(t *testing.T) {

	descriptor, err := ParseURL("cassandra://h1:9042/ks?consistency=quorum&host=h2&foo=bar")
	if !assert.NoError(t, err) {
		return
	}

	assert.Equal(t, []string{"h1", "h2"}, descriptor.Hosts)
}

func TestParseURLMalformed(t *testing.T) {

	for _, raw := range []string{
		"cassandra://h1:notaport/ks",
		"://missing-scheme",
	} {
		_, err := ParseURL(raw)
		assert.Error(t, err, "expected a parse error for %q", raw)
	}
}
