package extractor

import (
	"reflect"
	"testing"

	"github.com/moriyama/linkdigest/internal/model"
)

func TestExtract_EmptyText(t *testing.T) {
	e := New()
	links := e.Extract("")
	if len(links) != 0 {
		t.Errorf("空テキストの抽出結果 = %d件, want 0件", len(links))
	}
}

func TestExtract_NoURL(t *testing.T) {
	e := New()
	links := e.Extract("今天天气不错，没有链接")
	if len(links) != 0 {
		t.Errorf("URLなしテキストの抽出結果 = %d件, want 0件", len(links))
	}
}

func TestExtract_WeixinArticle(t *testing.T) {
	e := New()
	links := e.Extract("看看这篇 https://mp.weixin.qq.com/s/abc123")

	if len(links) != 1 {
		t.Fatalf("抽出結果 = %d件, want 1件", len(links))
	}

	got := links[0]
	if got.URL != "https://mp.weixin.qq.com/s/abc123" {
		t.Errorf("URL = %s, want https://mp.weixin.qq.com/s/abc123", got.URL)
	}
	if got.Platform != model.PlatformWeixin {
		t.Errorf("Platform = %s, want weixin", got.Platform)
	}
	if got.Category != model.CategoryWork {
		t.Errorf("Category = %s, want work", got.Category)
	}
	if !reflect.DeepEqual(got.Tags, []string{"article"}) {
		t.Errorf("Tags = %v, want [article]", got.Tags)
	}
}

func TestExtract_TrailingPunctuationStripped(t *testing.T) {
	e := New()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"半角ピリオド", "见 https://example.com/a.", "https://example.com/a"},
		{"半角カンマ", "见 https://example.com/a, 后续", "https://example.com/a"},
		{"全角句点", "见 https://example.com/a。", "https://example.com/a"},
		{"連続句読点", "见 https://example.com/a。。", "https://example.com/a"},
		// 空白を挟まないカンマはURLの一部として扱われる（末尾のみ除去）
		{"URL中間のカンマ", "见 https://example.com/a,后续", "https://example.com/a,后续"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.Reset()
			links := e.Extract(tt.text)
			if len(links) != 1 {
				t.Fatalf("抽出結果 = %d件, want 1件", len(links))
			}
			if links[0].URL != tt.want {
				t.Errorf("URL = %s, want %s", links[0].URL, tt.want)
			}
		})
	}
}

func TestExtract_DedupWithinScope(t *testing.T) {
	e := New()

	// 同一URL（末尾句読点違い）は1件に畳まれる
	links := e.Extract("https://example.com/a https://example.com/a。 https://example.com/b")
	if len(links) != 2 {
		t.Fatalf("抽出結果 = %d件, want 2件", len(links))
	}

	// 2回目の抽出では既出URLはすべてスキップされる
	again := e.Extract("https://example.com/a https://example.com/b")
	if len(again) != 0 {
		t.Errorf("既出URLの再抽出結果 = %d件, want 0件", len(again))
	}
}

func TestExtract_ResetClearsDedupMemory(t *testing.T) {
	e := New()

	first := e.Extract("https://example.com/a")
	if len(first) != 1 {
		t.Fatalf("初回の抽出結果 = %d件, want 1件", len(first))
	}

	e.Reset()

	second := e.Extract("https://example.com/a")
	if len(second) != 1 {
		t.Errorf("Reset後の抽出結果 = %d件, want 1件", len(second))
	}
}

func TestExtract_MultiplePlatformsInOneMessage(t *testing.T) {
	e := New()
	text := "工作 https://mp.weixin.qq.com/s/x 视频 https://www.bilibili.com/video/BV1 其他 https://example.com/post"

	links := e.Extract(text)
	if len(links) != 3 {
		t.Fatalf("抽出結果 = %d件, want 3件", len(links))
	}

	wantPlatforms := []model.Platform{model.PlatformWeixin, model.PlatformBilibili, model.PlatformUnknown}
	for i, want := range wantPlatforms {
		if links[i].Platform != want {
			t.Errorf("links[%d].Platform = %s, want %s", i, links[i].Platform, want)
		}
	}
}

func TestDetectPlatform_Table(t *testing.T) {
	tests := []struct {
		url  string
		want model.Platform
	}{
		{"https://mp.weixin.qq.com/s/abc", model.PlatformWeixin},
		{"https://zhuanlan.zhihu.com/p/123", model.PlatformZhihu},
		{"https://www.zhihu.com/question/1", model.PlatformZhihu},
		{"https://www.bilibili.com/video/BV1", model.PlatformBilibili},
		{"https://v.douyin.com/abc", model.PlatformDouyin},
		{"https://www.douyin.com/video/1", model.PlatformDouyin},
		{"https://www.xiaohongshu.com/explore/1", model.PlatformXiaohongshu},
		{"https://example.com/anything", model.PlatformUnknown},
		{"http://news.ycombinator.com/item?id=1", model.PlatformUnknown},
	}

	for _, tt := range tests {
		if got := DetectPlatform(tt.url); got != tt.want {
			t.Errorf("DetectPlatform(%s) = %s, want %s", tt.url, got, tt.want)
		}
	}
}

func TestDetectPlatform_Deterministic(t *testing.T) {
	url := "https://mp.weixin.qq.com/s/abc"
	first := DetectPlatform(url)
	for i := 0; i < 10; i++ {
		if got := DetectPlatform(url); got != first {
			t.Fatalf("同一URLの判定が揺れた: %s != %s", got, first)
		}
	}
}

func TestMeta_AllPlatformsHaveMeta(t *testing.T) {
	platforms := []model.Platform{
		model.PlatformWeixin, model.PlatformZhihu, model.PlatformBilibili,
		model.PlatformDouyin, model.PlatformXiaohongshu, model.PlatformUnknown,
	}

	for _, p := range platforms {
		category, tags := Meta(p)
		if category != model.CategoryWork && category != model.CategoryOther {
			t.Errorf("Meta(%s) のカテゴリが不正: %s", p, category)
		}
		if tags == nil {
			t.Errorf("Meta(%s) のタグがnil", p)
		}
	}
}

func TestMeta_UnknownPlatformFallsBack(t *testing.T) {
	category, tags := Meta(model.Platform("nonexistent"))
	if category != model.CategoryOther {
		t.Errorf("未定義プラットフォームのカテゴリ = %s, want other", category)
	}
	if len(tags) != 0 {
		t.Errorf("未定義プラットフォームのタグ = %v, want 空", tags)
	}
}
