// Package imagehost publishes uploaded images to a third-party image host
// so that the vision model can fetch them by URL.
//
// The client speaks the ImgBB upload API: a form-encoded POST carrying the
// API key, the base64 encoded image and its file name. The public URL is read
// from the "data.url" field of the JSON response.
package imagehost
