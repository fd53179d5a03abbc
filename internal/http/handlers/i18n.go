package handlers

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"postergen/internal/middleware"
)

var pageStrings = map[string][2]string{
	"app.title":                 {"红色海报工坊", "Red Poster Studio"},
	"nav.poster":                {"海报生成", "Poster"},
	"nav.generate":              {"生图测试", "Generation test"},
	"nav.upscale":               {"高清放大", "Upscale"},
	"nav.history":               {"历史记录", "History"},
	"poster.title":              {"一句话生成红色年代海报", "Turn an idea into a red-era poster"},
	"poster.idea":               {"你的创意", "Your idea"},
	"poster.aspect":             {"画幅比例", "Aspect ratio"},
	"poster.count":              {"生成数量", "Images"},
	"poster.submit":             {"生成海报", "Generate poster"},
	"poster.prompt":             {"生成的提示词", "Generated prompt"},
	"generate.title":            {"图像生成参数测试", "Image generation test"},
	"generate.prompt":           {"提示词", "Prompt"},
	"generate.width":            {"宽度", "Width"},
	"generate.height":           {"高度", "Height"},
	"generate.count":            {"数量", "Count"},
	"generate.seed":             {"随机种子 (-1 为随机)", "Seed (-1 for random)"},
	"generate.scale":            {"文本影响程度", "Guidance scale"},
	"generate.expansion":        {"开启文本扩写", "Expand prompt"},
	"generate.watermark":        {"添加水印", "Add watermark"},
	"generate.wm_position":      {"水印位置", "Watermark position"},
	"generate.wm_language":      {"水印语言", "Watermark language"},
	"generate.wm_opacity":       {"水印透明度", "Watermark opacity"},
	"generate.wm_text":          {"水印文字", "Watermark text"},
	"generate.submit":           {"开始生成", "Generate"},
	"result.images":             {"生成结果", "Results"},
	"result.failures":           {"失败的调用", "Failed calls"},
	"result.empty":              {"没有生成任何图片", "No image was generated"},
	"result.download":           {"下载", "Download"},
	"upscale.title":             {"图片 4 倍高清放大", "4x image upscaling"},
	"upscale.file":              {"上传图片", "Upload image"},
	"upscale.url":               {"或输入图片地址", "Or image URL"},
	"upscale.submit":            {"开始放大", "Upscale"},
	"upscale.source":            {"原图信息", "Source image"},
	"upscale.expected":          {"预计输出尺寸", "Expected output size"},
	"upscale.result":            {"放大结果", "Upscaled image"},
	"upscale.elapsed":           {"耗时", "Elapsed"},
	"upscale.download_original": {"下载原格式", "Download original"},
	"upscale.download_webp":     {"下载 WebP", "Download WebP"},
	"history.title":             {"最近的生成记录", "Recent generations"},
	"history.empty":             {"暂无记录", "Nothing generated yet"},
	"history.archive":           {"打包下载", "Download zip"},
	"error.title":               {"出错了", "Something went wrong"},
	"status.not_configured":     {"该服务尚未配置", "This service is not configured"},
}

func init() {
	for key, text := range pageStrings {
		_ = message.SetString(language.Chinese, key, text[0])
		_ = message.SetString(language.English, key, text[1])
	}
}

// translator returns a lookup bound to the request locale.
func translator(locale string) func(string) string {
	tag := language.Chinese
	if middleware.NormalizeLocale(locale) == middleware.LocaleEN {
		tag = language.English
	}
	p := message.NewPrinter(tag)
	return func(key string) string {
		return p.Sprintf(key)
	}
}
