package tools

const providerDoc = `{
  "openapi": "3.0.2",
  "info": {"title": "Proveedor", "version": "1.0"},
  "paths": {
    "/facturas/todas": {
      "post": {
        "operationId": "todas_las_facturas",
        "summary": "Todas las facturas del abonado",
        "requestBody": {"required": true, "content": {"application/json": {"schema": {"$ref": "#/components/schemas/DNIRequest"}}}},
        "responses": {"200": {"description": "ok"}}
      }
    },
    "/incidencias": {
      "post": {
        "operationId": "crear_incidencia",
        "description": "Crea una incidencia",
        "requestBody": {"content": {"application/json": {"schema": {"$ref": "#/components/schemas/IncidenciaRequest"}}}},
        "responses": {"200": {"description": "ok"}}
      },
      "get": {
        "operationId": "incidencias_por_ubicacion",
        "parameters": [{"name": "ubicacion", "in": "query", "required": true, "description": "Localidad", "schema": {"type": "string"}}],
        "responses": {"200": {"description": "ok"}}
      }
    },
    "/incidencias/{id}": {
      "delete": {
        "operationId": "borrar_incidencia",
        "parameters": [{"name": "id", "in": "path", "required": true, "schema": {"type": "integer"}}],
        "responses": {"200": {"description": "ok"}}
      }
    },
    "/health": {"get": {"responses": {"200": {"description": "ok"}}}}
  },
  "components": {
    "schemas": {
      "DNIRequest": {
        "type": "object",
        "properties": {"dni": {"type": "string", "description": "DNI del abonado"}},
        "required": ["dni"]
      },
      "IncidenciaRequest": {
        "type": "object",
        "properties": {
          "dni": {"type": "string"},
          "ubicacion": {"type": "string"},
          "descripcion": {"type": "string"},
          "estado": {"anyOf": [{"type": "string"}, {"type": "null"}], "title": "Estado"},
          "prioridad": {"anyOf": [{"type": "null"}, {"type": "integer"}]},
          "etiquetas": {"type": "array", "items": {"anyOf": [{"type": "integer"}, {"type": "string"}]}}
        },
        "required": ["dni", "ubicacion", "descripcion"]
      }
    }
  }
}`

const recursiveDoc = `{
  "openapi": "3.0.2",
  "info": {"title": "Árbol", "version": "1.0"},
  "paths": {
    "/nodos": {
      "post": {
        "operationId": "crear_nodo",
        "requestBody": {"content": {"application/json": {"schema": {"$ref": "#/components/schemas/Node"}}}},
        "responses": {"200": {"description": "ok"}}
      }
    }
  },
  "components": {
    "schemas": {
      "Node": {
        "type": "object",
        "required": ["nombre"],
        "properties": {
          "nombre": {"type": "string"},
          "child": {"$ref": "#/components/schemas/Node"},
          "children": {"type": "array", "items": {"$ref": "#/components/schemas/Node"}}
        }
      }
    }
  }
}`
