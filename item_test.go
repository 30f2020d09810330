package ddbload

import (
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetItemSize(t *testing.T) {
	s := func(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }
	n := func(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }

	var tests = []struct {
		name string
		item Item
		want ItemResult
	}{
		{"string", Item{"field": s("value")}, ItemResult{Size: 10, ReadUnit: 1, WriteUnit: 1}},
		{"number", Item{"field": s("value"), "count": n("3")}, ItemResult{Size: 17, ReadUnit: 1, WriteUnit: 1}},
		{"list", Item{"field": s("value"), "list": &types.AttributeValueMemberL{Value: []types.AttributeValue{
			n("3"), s("2"), s("foo"),
		}}}, ItemResult{Size: 26, ReadUnit: 1, WriteUnit: 1}},
		{"map", Item{"field": s("value"), "list": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"foo": s("hoge"), "count": n("3"),
		}}}, ItemResult{Size: 33, ReadUnit: 1, WriteUnit: 1}},
		{"bool and null", Item{
			"flag": &types.AttributeValueMemberBOOL{Value: false},
			"none": &types.AttributeValueMemberNULL{Value: true},
		}, ItemResult{Size: 10, ReadUnit: 1, WriteUnit: 1}},
		{"sets", Item{
			"ss": &types.AttributeValueMemberSS{Value: []string{"a", "bc"}},
			"ns": &types.AttributeValueMemberNS{Value: []string{"1", "123"}},
			"bs": &types.AttributeValueMemberBS{Value: [][]byte{{1, 2}, {3}}},
		}, ItemResult{Size: 17, ReadUnit: 1, WriteUnit: 1}},
		{"binary", Item{"b": &types.AttributeValueMemberB{Value: make([]byte, 1023)}}, ItemResult{Size: 1024, ReadUnit: 1, WriteUnit: 1}},
		{"over one write unit", Item{"b": &types.AttributeValueMemberB{Value: make([]byte, 1024)}}, ItemResult{Size: 1025, ReadUnit: 1, WriteUnit: 2}},
		{"over one read unit", Item{"s": s(strings.Repeat("x", 4096))}, ItemResult{Size: 4097, ReadUnit: 2, WriteUnit: 5}},
		{"empty", Item{}, ItemResult{Size: 0, ReadUnit: 1, WriteUnit: 1}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := GetItemSize(test.item)
			require.NoError(t, err)
			assert.Equal(t, test.want, *got)
		})
	}
}

func TestGetItemSize_LargeItem(t *testing.T) {
	item := Item{"data": &types.AttributeValueMemberS{Value: strings.Repeat("x", ItemSizeLimit-4)}}

	got, err := GetItemSize(item)
	require.NoError(t, err)
	assert.Equal(t, ItemSizeLimit, got.Size)
	assert.Equal(t, 400, got.WriteUnit)
	assert.Equal(t, 100, got.ReadUnit)
}

func TestNumberSize(t *testing.T) {
	var tests = []struct {
		input string
		want  int
	}{
		{"3", 2},
		{"0", 1},
		{"123", 3},
		{"-1.5", 2},
		{"1000", 2},
		{"0.0012", 2},
		{"1.5e10", 2},
		{"1652940797", 6},
	}

	for _, test := range tests {
		assert.Equal(t, test.want, numberSize(test.input), "number %s", test.input)
	}
}

func TestItemFromJSON(t *testing.T) {
	item, err := ItemFromJSON([]byte(`{"pk":"a","count":3,"tags":["x",1],"meta":{"ok":true}}`))
	require.NoError(t, err)

	assert.Equal(t, &types.AttributeValueMemberS{Value: "a"}, item["pk"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "3"}, item["count"])
	assert.IsType(t, &types.AttributeValueMemberL{}, item["tags"])
	assert.IsType(t, &types.AttributeValueMemberM{}, item["meta"])

	b, err := ItemJSON(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"pk":"a","count":3,"tags":["x",1],"meta":{"ok":true}}`, string(b))
}

func TestItemFromJSON_Invalid(t *testing.T) {
	_, err := ItemFromJSON([]byte(`{"pk":`))
	assert.Error(t, err)

	_, err = ItemFromJSON([]byte(`["not", "an", "object"]`))
	assert.Error(t, err)
}
