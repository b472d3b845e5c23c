// Package vision queries a vision-capable language model through an
// OpenAI-compatible chat completion API.
//
// A query is a single user message whose content is the Extraction Prompt
// followed by the hosted image URL. One completion is requested; there is no
// streaming, no multi-turn context and no retry.
package vision
