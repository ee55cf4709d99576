// docs/docs.go
// Package docs registers the OpenAPI description of the HTTP API with swag.
// It follows the layout swag init writes so the annotations on the handlers
// can regenerate it.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "POS Device Service"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/sales/finalize": {
            "post": {
                "description": "Commit an order, sale or document and print its receipts in one call. Printed receipts are annulled when a later step fails.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Sales"],
                "summary": "Finalize sale",
                "parameters": [
                    {
                        "description": "Finalize request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/service.FinalizeRequest"}
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Finalize completed",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/utils.APIResponse"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/service.FinalizeResult"}}}
                            ]
                        }
                    },
                    "400": {"description": "Invalid request or plan", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "409": {"description": "Receipt printer required or fiscal error", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "503": {"description": "Device unavailable", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/v1/sales/{ref}": {
            "get": {
                "description": "Load a committed sale by ID or by sale number",
                "produces": ["application/json"],
                "tags": ["Sales"],
                "summary": "Get sale",
                "parameters": [
                    {"type": "string", "description": "Sale ID or sale number", "name": "ref", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {
                        "description": "Sale retrieved successfully",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/utils.APIResponse"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/model.Sale"}}}
                            ]
                        }
                    },
                    "400": {"description": "Invalid sale reference", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "404": {"description": "Sale not found", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/v1/hardware/status": {
            "get": {
                "description": "Get the worker state and the connection of every device role",
                "produces": ["application/json"],
                "tags": ["Hardware"],
                "summary": "Hardware status",
                "responses": {
                    "200": {
                        "description": "Hardware status retrieved",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/utils.APIResponse"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/service.HardwareStatus"}}}
                            ]
                        }
                    }
                }
            }
        },
        "/api/v1/hardware/resolve": {
            "post": {
                "description": "Leave the degraded state and resume status polling",
                "produces": ["application/json"],
                "tags": ["Hardware"],
                "summary": "Resolve status error",
                "responses": {
                    "200": {
                        "description": "Status error resolved",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/utils.APIResponse"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/service.HardwareStatus"}}}
                            ]
                        }
                    }
                }
            }
        },
        "/api/v1/hardware/drivers": {
            "get": {
                "description": "List the registered device driver types and their capabilities",
                "produces": ["application/json"],
                "tags": ["Hardware"],
                "summary": "List drivers",
                "responses": {
                    "200": {
                        "description": "Drivers retrieved",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/utils.APIResponse"},
                                {"type": "object", "properties": {"data": {"type": "array", "items": {"$ref": "#/definitions/driver.DriverInfo"}}}}
                            ]
                        }
                    }
                }
            }
        },
        "/api/v1/hardware/roles/{role}/connect": {
            "post": {
                "description": "Connect the device configured for a role",
                "produces": ["application/json"],
                "tags": ["Hardware"],
                "summary": "Connect role",
                "parameters": [
                    {
                        "enum": ["cash_receipt_printer", "customer_order_printer", "kitchen_printer", "external_display", "card_reader", "electronic_scale", "sales_data_controller", "barcode_scanner"],
                        "type": "string",
                        "description": "Device role",
                        "name": "role",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "Device connected", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Unknown role", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "409": {"description": "Device configuration conflict", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "503": {"description": "Device unavailable", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/v1/hardware/roles/{role}/disconnect": {
            "post": {
                "description": "Release the device of a role",
                "produces": ["application/json"],
                "tags": ["Hardware"],
                "summary": "Disconnect role",
                "parameters": [
                    {"type": "string", "description": "Device role", "name": "role", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Device disconnected", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Unknown role", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/v1/hardware/roles/{role}/reconnect": {
            "post": {
                "description": "Drop and reconnect the device of a role, releasing roles that share its port",
                "produces": ["application/json"],
                "tags": ["Hardware"],
                "summary": "Reconnect role",
                "parameters": [
                    {"type": "string", "description": "Device role", "name": "role", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Device reconnected", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Unknown role", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "503": {"description": "Device unavailable", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/v1/hardware/roles/{role}/inject": {
            "post": {
                "description": "Feed a card number, barcode or weight into a simulated input device",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Hardware"],
                "summary": "Inject input",
                "parameters": [
                    {
                        "enum": ["card_reader", "barcode_scanner", "electronic_scale"],
                        "type": "string",
                        "description": "Device role",
                        "name": "role",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Injected value",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handler.InjectRequest"}
                    }
                ],
                "responses": {
                    "202": {"description": "Input injected", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid request or device is not simulated", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "409": {"description": "Role not connected", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/v1/devices": {
            "get": {
                "description": "List the configured devices",
                "produces": ["application/json"],
                "tags": ["Devices"],
                "summary": "List devices",
                "responses": {
                    "200": {
                        "description": "Devices retrieved successfully",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/utils.APIResponse"},
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "type": "object",
                                            "properties": {
                                                "count": {"type": "integer"},
                                                "devices": {"type": "array", "items": {"$ref": "#/definitions/model.Device"}}
                                            }
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            },
            "post": {
                "description": "Store a device configuration; connected roles of the device are released",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Devices"],
                "summary": "Create device",
                "parameters": [
                    {
                        "description": "Device configuration",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/service.SaveDeviceRequest"}
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Device saved successfully",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/utils.APIResponse"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/model.Device"}}}
                            ]
                        }
                    },
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "409": {"description": "Devices are read-only", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/v1/devices/{id}": {
            "put": {
                "description": "Replace a device configuration",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Devices"],
                "summary": "Update device",
                "parameters": [
                    {"type": "string", "description": "Device ID", "name": "id", "in": "path", "required": true},
                    {
                        "description": "Device configuration",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/service.SaveDeviceRequest"}
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Device updated successfully",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/utils.APIResponse"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/model.Device"}}}
                            ]
                        }
                    },
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "409": {"description": "Devices are read-only", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            },
            "delete": {
                "description": "Delete a device configuration",
                "produces": ["application/json"],
                "tags": ["Devices"],
                "summary": "Delete device",
                "parameters": [
                    {"type": "string", "description": "Device ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Device deleted successfully", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "404": {"description": "Device not found", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "409": {"description": "Devices are read-only", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/v1/discovery/ports": {
            "get": {
                "description": "List serial, USB and TCP ports a device can be assigned to",
                "produces": ["application/json"],
                "tags": ["Discovery"],
                "summary": "Scan ports",
                "parameters": [
                    {
                        "enum": ["all", "serial", "usb", "tcp"],
                        "type": "string",
                        "default": "all",
                        "description": "Scanner type",
                        "name": "type",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {"description": "Port scan completed", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Unknown scanner type", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/v1/discovery/scanners": {
            "get": {
                "description": "List the port scanner types available on this machine",
                "produces": ["application/json"],
                "tags": ["Discovery"],
                "summary": "List scanners",
                "responses": {
                    "200": {"description": "Scanners retrieved", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Get service health including database connectivity and hardware worker state",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "Service is healthy", "schema": {"$ref": "#/definitions/handler.HealthResponse"}},
                    "503": {"description": "Service is unhealthy", "schema": {"$ref": "#/definitions/handler.HealthResponse"}}
                }
            }
        },
        "/health/db": {
            "get": {
                "description": "Check database connectivity and pool statistics",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Database health check",
                "responses": {
                    "200": {"description": "Database is healthy", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "503": {"description": "Database is unhealthy", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/ready": {
            "get": {
                "description": "Check that the database is reachable and the hardware worker runs",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Service is ready", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Service is not ready", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/live": {
            "get": {
                "description": "Check that the process is alive",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "Service is alive", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        }
    },
    "definitions": {
        "driver.DriverInfo": {
            "type": "object",
            "properties": {
                "commands": {"type": "array", "items": {"type": "string"}},
                "manufacturer": {"type": "string"},
                "name": {"type": "string"},
                "type": {"type": "string"}
            }
        },
        "handler.CheckResult": {
            "type": "object",
            "properties": {
                "data": {"type": "object", "additionalProperties": true},
                "message": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "handler.HealthResponse": {
            "type": "object",
            "properties": {
                "checks": {"type": "object", "additionalProperties": {"$ref": "#/definitions/handler.CheckResult"}},
                "service": {"type": "string"},
                "status": {"type": "string"},
                "timestamp": {"type": "string"},
                "uptime": {"type": "string"},
                "version": {"type": "string"}
            }
        },
        "handler.InjectRequest": {
            "type": "object",
            "required": ["value"],
            "properties": {
                "value": {"type": "string"}
            }
        },
        "hardware.RoleStatus": {
            "type": "object",
            "properties": {
                "connected": {"type": "boolean"},
                "device": {"type": "string"},
                "driver_type": {"type": "string"},
                "port": {"type": "string"},
                "ref_count": {"type": "integer"},
                "role": {"type": "string"}
            }
        },
        "model.Device": {
            "type": "object",
            "properties": {
                "driver_type": {"type": "string"},
                "enabled": {"type": "boolean"},
                "id": {"type": "string"},
                "item_groups": {"type": "array", "items": {"type": "string"}},
                "name": {"type": "string"},
                "port": {"type": "string"},
                "roles": {"description": "bit set of device roles", "type": "integer"},
                "serial": {"$ref": "#/definitions/model.SerialConfig"}
            }
        },
        "model.Document": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "issued_at": {"type": "string"},
                "kind": {"type": "string", "enum": ["INVOICE", "CREDIT_NOTE", "PROFORMA", "WARRANTY_CARD"]},
                "number": {"type": "string"},
                "recipient": {"type": "string"},
                "sale_id": {"type": "string"}
            }
        },
        "model.Order": {
            "type": "object",
            "properties": {
                "details": {"type": "array", "items": {"$ref": "#/definitions/model.SaleDetail"}},
                "id": {"type": "string"},
                "location": {"type": "string"},
                "location_id": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "model.Payment": {
            "type": "object",
            "properties": {
                "amount": {"type": "string"},
                "created_at": {"type": "string"},
                "id": {"type": "string"},
                "sale_id": {"type": "string"},
                "type": {"type": "string", "enum": ["CASH", "CARD", "BANK_TRANSFER", "COUPON", "ADVANCE"]}
            }
        },
        "model.Sale": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "details": {"type": "array", "items": {"$ref": "#/definitions/model.SaleDetail"}},
                "id": {"type": "string"},
                "location": {"type": "string"},
                "location_id": {"type": "string"},
                "note": {"type": "string"},
                "number": {"type": "integer"},
                "partner": {"type": "string"},
                "partner_id": {"type": "string"},
                "payments": {"type": "array", "items": {"$ref": "#/definitions/model.Payment"}},
                "state": {"type": "string", "enum": ["DRAFT", "NEW_DRAFT", "NEW", "ANNULLED"]},
                "user": {"type": "string"},
                "user_id": {"type": "string"}
            }
        },
        "model.SaleDetail": {
            "type": "object",
            "properties": {
                "discount": {"description": "percent", "type": "string"},
                "id": {"type": "string"},
                "item_code": {"type": "string"},
                "item_group": {"type": "string"},
                "item_id": {"type": "string"},
                "item_name": {"type": "string"},
                "note": {"type": "string"},
                "price": {"type": "string"},
                "quantity": {"type": "string"},
                "vat_group": {"type": "string"},
                "vat_rate": {"type": "string"}
            }
        },
        "model.SerialConfig": {
            "type": "object",
            "properties": {
                "baud_rate": {"type": "integer"},
                "data_bits": {"type": "integer"},
                "parity": {"type": "string"},
                "stop_bits": {"type": "integer"}
            }
        },
        "service.FinalizeRequest": {
            "type": "object",
            "required": ["actions"],
            "properties": {
                "actions": {
                    "type": "array",
                    "minItems": 1,
                    "items": {
                        "type": "string",
                        "enum": ["commit_order", "commit_sale", "commit_document", "print_kitchen", "print_customer_order", "collect_sale_data", "print_cash_receipt", "print_customer_order_invoice", "print_cash_receipt_invoice"]
                    }
                },
                "cash_receipt_sale": {"$ref": "#/definitions/model.Sale"},
                "cash_receipt_title": {"type": "string"},
                "customer_order_delta_sale": {"$ref": "#/definitions/model.Sale"},
                "customer_order_sale": {"$ref": "#/definitions/model.Sale"},
                "customer_order_title": {"type": "string"},
                "document": {"$ref": "#/definitions/model.Document"},
                "edited_advance_payments": {"type": "array", "items": {"$ref": "#/definitions/model.Payment"}},
                "invoice_copies": {"description": "omitted uses the configured default", "type": "integer"},
                "kitchen_delta_sale": {"$ref": "#/definitions/model.Sale"},
                "kitchen_sale": {"$ref": "#/definitions/model.Sale"},
                "kitchen_title": {"type": "string"},
                "order": {"$ref": "#/definitions/model.Order"},
                "sale": {"$ref": "#/definitions/model.Sale"},
                "silent_mode": {"type": "boolean"}
            }
        },
        "service.FinalizeResult": {
            "type": "object",
            "properties": {
                "actions": {"type": "string"},
                "document": {"$ref": "#/definitions/model.Document"},
                "duration": {"type": "string"},
                "order": {"$ref": "#/definitions/model.Order"},
                "sale": {"$ref": "#/definitions/model.Sale"}
            }
        },
        "service.HardwareStatus": {
            "type": "object",
            "properties": {
                "degraded": {"type": "boolean"},
                "ports": {"type": "array", "items": {"type": "string"}},
                "roles": {"type": "array", "items": {"$ref": "#/definitions/hardware.RoleStatus"}},
                "running": {"type": "boolean"}
            }
        },
        "service.SaveDeviceRequest": {
            "type": "object",
            "required": ["driver_type", "name", "port", "roles"],
            "properties": {
                "driver_type": {"type": "string"},
                "enabled": {"type": "boolean"},
                "id": {"type": "string"},
                "item_groups": {"type": "array", "items": {"type": "string"}},
                "name": {"type": "string"},
                "port": {"type": "string"},
                "roles": {"type": "array", "minItems": 1, "items": {"type": "string"}},
                "serial": {"$ref": "#/definitions/model.SerialConfig"}
            }
        },
        "utils.APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "details": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "utils.APIResponse": {
            "type": "object",
            "properties": {
                "data": {},
                "error": {"$ref": "#/definitions/utils.APIError"},
                "message": {"type": "string"},
                "request_id": {"type": "string"},
                "success": {"type": "boolean"},
                "timestamp": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds the API metadata. An empty Host makes clients use the
// host that served the document.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "POS Device Service API",
	Description:      "Finalizes sales and drives the receipt printers, fiscal devices, displays and input devices of a point of sale",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
