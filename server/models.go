package main

// Request types for the main-package handlers. Domain packages declare their
// own request types next to their handlers.

type verifyEventRequest struct {
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Name string `json:"name" binding:"required"`
	Pin  string `json:"pin" binding:"required"`
}

type loginRequest struct {
	Name string `json:"name" binding:"required"`
	Pin  string `json:"pin" binding:"required"`
}
