package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	pcierrors "github.com/standardbeagle/pci/internal/errors"
)

// createJSONResponse creates a standardized JSON response for MCP tools
func createJSONResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
	}, nil
}

// createErrorResponse creates a standardized error response. IsError is
// set per the MCP specification: tool failures are reported inside the
// result, not as protocol errors.
func createErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	errorData := map[string]interface{}{
		"success":   false,
		"error":     err.Error(),
		"operation": operation,
	}

	var notFound *pcierrors.NotFoundError
	if errors.As(err, &notFound) {
		errorData["error_type"] = "not_found"
		if len(notFound.Suggestions) > 0 {
			errorData["suggestions"] = notFound.Suggestions
		}
	}
	var invalid *pcierrors.InvalidParameterError
	if errors.As(err, &invalid) {
		errorData["error_type"] = "invalid_parameter"
		errorData["field"] = invalid.Field
	}

	response, marshalErr := createJSONResponse(errorData)
	if marshalErr != nil {
		return nil, marshalErr
	}
	response.IsError = true
	return response, nil
}
