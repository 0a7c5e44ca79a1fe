package vocabulary

func init() {
	Register("en",
		WithName("English"),
		WithStopWords(
			"about", "also", "could", "from", "have", "into", "just", "please",
			"should", "than", "that", "them", "then", "there", "they", "this",
			"what", "when", "with", "would", "your",
		))

	Register("ru",
		WithName("Русский"),
		WithStopWords(
			"будет", "быть", "если", "есть", "когда", "можно", "надо", "нужно",
			"очень", "пожалуйста", "сейчас", "только", "тоже", "чтобы", "этот", "этом",
		))
}
