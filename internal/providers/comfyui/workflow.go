package comfyui

// OutputNode is the id of the preview node whose images are the upscale result.
const OutputNode = "7"

// DefaultModelName is the x4 ESRGAN checkpoint loaded by the upscale graph.
const DefaultModelName = "RealESRGAN_x4plus.pth"

// upscaleWorkflow returns a fresh four node graph that loads the uploaded image,
// runs it through the upscale model and previews the output. Every call builds a
// new map so concurrent jobs never share state.
func upscaleWorkflow(modelName, image string) map[string]any {
	return map[string]any{
		"2": map[string]any{
			"class_type": "UpscaleModelLoader",
			"inputs": map[string]any{
				"model_name": modelName,
			},
		},
		"5": map[string]any{
			"class_type": "LoadImage",
			"inputs": map[string]any{
				"image":  image,
				"upload": "image",
			},
		},
		"4": map[string]any{
			"class_type": "ImageUpscaleWithModel",
			"inputs": map[string]any{
				"upscale_model": []any{"2", 0},
				"image":         []any{"5", 0},
			},
		},
		OutputNode: map[string]any{
			"class_type": "PreviewImage",
			"inputs": map[string]any{
				"images": []any{"4", 0},
			},
		},
	}
}
