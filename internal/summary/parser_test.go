package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanNarrative(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text untouched",
			input: "# 概述\n\n视频讲解了模块系统。",
			want:  "# 概述\n\n视频讲解了模块系统。",
		},
		{
			name:  "whole response wrapped in markdown fence",
			input: "```markdown\n# Overview\n\nBody text.\n```",
			want:  "# Overview\n\nBody text.",
		},
		{
			name:  "whole response wrapped in untagged fence",
			input: "```\n# Overview\n```",
			want:  "# Overview",
		},
		{
			name:  "nested markdown fences unwrapped iteratively",
			input: "```markdown\n```markdown\n# Deep\n```\n```",
			want:  "# Deep",
		},
		{
			name:  "embedded fenced heading fragment",
			input: "Intro paragraph.\n```markdown\n## Section\nDetails here\n```\nOutro.",
			want:  "Intro paragraph.\n## Section\nDetails here\nOutro.",
		},
		{
			name:  "separate fenced blocks with prose between kept",
			input: "```\nfirst snippet\n```\nProse between the blocks.\n```\nsecond snippet\n```",
			want:  "```\nfirst snippet\n```\nProse between the blocks.\n```\nsecond snippet\n```",
		},
		{
			name:  "leading tagged fence closing early kept",
			input: "```markdown\nfirst block\n```\nProse between.\n```markdown\nsecond block\n```",
			want:  "```markdown\nfirst block\n```\nProse between.\n```markdown\nsecond block\n```",
		},
		{
			name:  "code fence without heading kept",
			input: "Run this:\n```\nmake build\n```\ndone.",
			want:  "Run this:\n```\nmake build\n```\ndone.",
		},
		{
			name:  "empty input",
			input: "   \n\t",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanNarrative(tt.input))
		})
	}
}

func TestParseSegments(t *testing.T) {
	t.Parallel()

	t.Run("well formed object", func(t *testing.T) {
		raw := `{"segments":[{"timestamp":"01:30","title":"开场","summary":"介绍本期主题"},{"timestamp":"00:10","title":"片头","summary":"片头动画"}]}`

		segments := ParseSegments(raw)
		require.Len(t, segments, 2)
		// Sorted by timestamp.
		assert.Equal(t, 10, segments[0].TimestampSeconds)
		assert.Equal(t, "片头", segments[0].Title)
		assert.Equal(t, 90, segments[1].TimestampSeconds)
		assert.Equal(t, "开场", segments[1].Title)
	})

	t.Run("fenced with prose around", func(t *testing.T) {
		raw := "Here is the result:\n```json\n{\"segments\":[{\"timestamp\":\"00:05\",\"title\":\"t\",\"summary\":\"s\"}]}\n```\nHope that helps!"

		segments := ParseSegments(raw)
		require.Len(t, segments, 1)
		assert.Equal(t, 5, segments[0].TimestampSeconds)
	})

	t.Run("missing comma between objects repaired", func(t *testing.T) {
		raw := `{"segments":[{"timestamp":"00:05","title":"a","summary":"x"} {"timestamp":"00:10","title":"b","summary":"y"}]}`

		segments := ParseSegments(raw)
		require.Len(t, segments, 2)
		assert.Equal(t, "a", segments[0].Title)
		assert.Equal(t, "b", segments[1].Title)
	})

	t.Run("trailing comma repaired", func(t *testing.T) {
		raw := `{"segments":[{"timestamp":"00:05","title":"a","summary":"x"},],}`

		segments := ParseSegments(raw)
		require.Len(t, segments, 1)
	})

	t.Run("bare top level array", func(t *testing.T) {
		raw := `[{"timestamp":"02:00","title":"only","summary":"entry"}]`

		segments := ParseSegments(raw)
		require.Len(t, segments, 1)
		assert.Equal(t, 120, segments[0].TimestampSeconds)
	})

	t.Run("numeric timestamps", func(t *testing.T) {
		raw := `{"segments":[{"timestamp":95,"title":"n","summary":"numeric"},{"timestamp":12.7,"title":"f","summary":"float"}]}`

		segments := ParseSegments(raw)
		require.Len(t, segments, 2)
		assert.Equal(t, 12, segments[0].TimestampSeconds)
		assert.Equal(t, 95, segments[1].TimestampSeconds)
	})

	t.Run("alternative time key", func(t *testing.T) {
		raw := `{"segments":[{"time":"00:42","title":"alt","summary":"key"}]}`

		segments := ParseSegments(raw)
		require.Len(t, segments, 1)
		assert.Equal(t, 42, segments[0].TimestampSeconds)
	})

	t.Run("unrecoverable input yields empty slice", func(t *testing.T) {
		for _, raw := range []string{"", "no json here", "{broken", `{"other":"shape"}`} {
			segments := ParseSegments(raw)
			assert.NotNil(t, segments, "input %q", raw)
			assert.Empty(t, segments, "input %q", raw)
		}
	})
}

func TestParseSegmentsAndAds(t *testing.T) {
	t.Parallel()

	t.Run("explicit ads array wins", func(t *testing.T) {
		raw := `{
			"segments":[{"timestamp":"00:10","title":"开场","summary":"主题介绍"}],
			"ads":[{"start":"01:00","end":"01:45","product":"VPN","description":"赞助商口播"}]
		}`

		segments, ads := ParseSegmentsAndAds(raw, 0)
		require.Len(t, segments, 1)
		require.Len(t, ads, 1)
		assert.Equal(t, 60, ads[0].StartSeconds)
		assert.Equal(t, 105, ads[0].EndSeconds)
		assert.Equal(t, "VPN", ads[0].Product)
	})

	t.Run("legacy hasAds span shape", func(t *testing.T) {
		raw := `{"hasAds":true,"segments":[{"start":"02:00","end":"02:30","product":"课程","description":"推广"}]}`

		segments, ads := ParseSegmentsAndAds(raw, 0)
		assert.Empty(t, segments)
		require.Len(t, ads, 1)
		assert.Equal(t, 120, ads[0].StartSeconds)
		assert.Equal(t, 150, ads[0].EndSeconds)
		assert.Equal(t, "课程", ads[0].Product)
	})

	t.Run("ad titled segment reclassified", func(t *testing.T) {
		raw := `{"segments":[
			{"timestamp":"00:10","title":"开场","summary":"主题介绍"},
			{"timestamp":"01:00","title":"广告","summary":"赞助商口播"},
			{"timestamp":"02:00","title":"正文","summary":"核心内容"}
		]}`

		segments, ads := ParseSegmentsAndAds(raw, 30)
		require.Len(t, segments, 2)
		assert.Equal(t, "开场", segments[0].Title)
		assert.Equal(t, "正文", segments[1].Title)

		require.Len(t, ads, 1)
		assert.Equal(t, 60, ads[0].StartSeconds)
		assert.Equal(t, 90, ads[0].EndSeconds)
		assert.Equal(t, "赞助商口播", ads[0].Description)
	})

	t.Run("english advertisement title case insensitive", func(t *testing.T) {
		raw := `{"segments":[{"timestamp":"00:30","title":"Advertisement","summary":"sponsor read"}]}`

		segments, ads := ParseSegmentsAndAds(raw, 0)
		assert.Empty(t, segments)
		require.Len(t, ads, 1)
		assert.Equal(t, 30, ads[0].StartSeconds)
		assert.Equal(t, 60, ads[0].EndSeconds)
	})

	t.Run("explicit ads suppress reclassified duplicates", func(t *testing.T) {
		raw := `{
			"segments":[{"timestamp":"01:00","title":"广告","summary":"口播"}],
			"ads":[{"start":"01:00","end":"01:20","product":"p","description":"d"}]
		}`

		segments, ads := ParseSegmentsAndAds(raw, 0)
		assert.Empty(t, segments)
		require.Len(t, ads, 1)
		assert.Equal(t, "p", ads[0].Product)
	})

	t.Run("ad with missing end gets default duration", func(t *testing.T) {
		raw := `{"ads":[{"start":"03:00","product":"x","description":"y"}],"segments":[]}`

		_, ads := ParseSegmentsAndAds(raw, 45)
		require.Len(t, ads, 1)
		assert.Equal(t, 180, ads[0].StartSeconds)
		assert.Equal(t, 225, ads[0].EndSeconds)
	})

	t.Run("unrecoverable input yields empty slices", func(t *testing.T) {
		segments, ads := ParseSegmentsAndAds("not json", 0)
		assert.NotNil(t, segments)
		assert.NotNil(t, ads)
		assert.Empty(t, segments)
		assert.Empty(t, ads)
	})
}
