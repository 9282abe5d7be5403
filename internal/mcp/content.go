/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package mcp

const contentTypeText = "text"

func textContent(text string) []ContentItem {
	return []ContentItem{{Type: contentTypeText, Text: text}}
}

// NewToolError wraps a failure message as tool output with isError set.
// The error return is always nil so handlers can return it directly.
func NewToolError(message string) (ToolResponse, error) {
	return ToolResponse{Content: textContent(message), IsError: true}, nil
}

// NewToolSuccess wraps rendered output as tool content
func NewToolSuccess(message string) (ToolResponse, error) {
	return ToolResponse{Content: textContent(message)}, nil
}

// NewResourceError reports a resource that could not be produced. The
// message is returned as plain text content under the requested URI.
func NewResourceError(uri, message string) (ResourceContent, error) {
	return ResourceContent{URI: uri, Contents: textContent(message)}, nil
}

// NewResourceSuccess returns a resource body with its MIME type
func NewResourceSuccess(uri, mimeType, content string) (ResourceContent, error) {
	return ResourceContent{URI: uri, MimeType: mimeType, Contents: textContent(content)}, nil
}
