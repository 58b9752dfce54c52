package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pilab-dev/shadow-admin/client"
	serrors "github.com/pilab-dev/shadow-admin/errors"
	"github.com/spf13/cobra"
)

func newProductsCmd(a *app) *cobra.Command {
	productsCmd := &cobra.Command{
		Use:     "products",
		Short:   "Manage the product catalog",
		Aliases: []string{"product"},
	}
	productsCmd.AddCommand(
		newProductsListCmd(a),
		newProductsGetCmd(a),
		newProductsAddCmd(a),
		newProductsUpdateCmd(a),
		newProductsDeleteCmd(a),
	)
	return productsCmd
}

func newProductsListCmd(a *app) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List products",
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := a.client.ListProducts(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list products: %s", serrors.UserMessage(err))
			}
			if len(products) == 0 {
				a.printf("No products found.\n")
				return nil
			}
			return a.printYAML(products)
		},
	}
	return withView(listCmd, "/products")
}

func newProductsGetCmd(a *app) *cobra.Command {
	getCmd := &cobra.Command{
		Use:   "get PRODUCT_ID",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.client.GetProduct(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get product: %s", serrors.UserMessage(err))
			}
			return a.printYAML(p)
		},
	}
	return withView(getCmd, "/products")
}

type productFlags struct {
	name, details, image string
	price                float64
}

func (f *productFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "product name")
	cmd.Flags().StringVar(&f.details, "details", "", "product description")
	cmd.Flags().Float64Var(&f.price, "price", 0, "product price")
	cmd.Flags().StringVar(&f.image, "image", "", "image file to upload")
}

// attach opens the image file, if any, into form. The caller closes the
// returned file.
func (f *productFlags) attach(form *client.ProductForm) (*os.File, error) {
	if f.image == "" {
		return nil, nil
	}
	file, err := os.Open(f.image)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	form.Image = file
	form.ImageFilename = filepath.Base(f.image)
	return file, nil
}

func newProductsAddCmd(a *app) *cobra.Command {
	var f productFlags

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a product",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.name == "" {
				return errors.New("name is required via --name flag")
			}
			if f.price < 0 {
				return errors.New("price must not be negative")
			}

			form := client.ProductForm{Name: f.name, Details: f.details, Price: f.price}
			file, err := f.attach(&form)
			if err != nil {
				return err
			}
			if file != nil {
				defer file.Close()
			}

			if err := a.client.AddProduct(cmd.Context(), form); err != nil {
				return fmt.Errorf("failed to add product: %s", serrors.UserMessage(err))
			}
			a.printf("Product %s added.\n", f.name)
			return nil
		},
	}
	f.bind(addCmd)
	return withView(addCmd, "/products")
}

func newProductsUpdateCmd(a *app) *cobra.Command {
	var f productFlags

	updateCmd := &cobra.Command{
		Use:   "update PRODUCT_ID",
		Short: "Update a product; unset flags keep their current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			current, err := a.client.GetProduct(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to load product: %s", serrors.UserMessage(err))
			}

			form := client.ProductForm{Name: current.Name, Details: current.Details, Price: current.Price}
			flags := cmd.Flags()
			if flags.Changed("name") {
				form.Name = f.name
			}
			if flags.Changed("details") {
				form.Details = f.details
			}
			if flags.Changed("price") {
				if f.price < 0 {
					return errors.New("price must not be negative")
				}
				form.Price = f.price
			}
			file, err := f.attach(&form)
			if err != nil {
				return err
			}
			if file != nil {
				defer file.Close()
			}

			if err := a.client.UpdateProduct(ctx, args[0], form); err != nil {
				return fmt.Errorf("failed to update product: %s", serrors.UserMessage(err))
			}
			a.printf("Product %s updated.\n", args[0])
			return nil
		},
	}
	f.bind(updateCmd)
	return withView(updateCmd, "/products")
}

func newProductsDeleteCmd(a *app) *cobra.Command {
	deleteCmd := &cobra.Command{
		Use:   "delete PRODUCT_ID",
		Short: "Delete a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteProduct(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete product: %s", serrors.UserMessage(err))
			}
			a.printf("Product %s deleted.\n", args[0])
			return nil
		},
	}
	return withView(deleteCmd, "/products")
}
